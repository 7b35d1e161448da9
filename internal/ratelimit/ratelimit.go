// Package ratelimit admits or denies public writes per (identity-or-IP,
// action class) using fixed-window counters. The memory backend is the
// default; the Redis backend shares windows across replicas.
package ratelimit

import (
	"context"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
)

// Class groups requests that share a limit. Each class has its own
// bucket per key and its own (limit, window) rule.
type Class string

const (
	ClassRegister Class = "register"
	ClassLogin    Class = "login"
	ClassSubmit   Class = "submit"
	ClassEdit     Class = "edit"
	ClassImage    Class = "image"
	ClassFeedback Class = "feedback"
	ClassRead     Class = "read"
	ClassAdmin    Class = "admin"
)

// Rule is the number of requests allowed per window for one class.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules returns the per-class limits. Account creation is the
// strictest; reads are generous.
func DefaultRules() map[Class]Rule {
	return map[Class]Rule{
		ClassRegister: {Limit: 3, Window: time.Hour},
		ClassLogin:    {Limit: 10, Window: time.Hour},
		ClassSubmit:   {Limit: 20, Window: time.Hour},
		ClassEdit:     {Limit: 30, Window: time.Hour},
		ClassImage:    {Limit: 10, Window: time.Hour},
		ClassFeedback: {Limit: 30, Window: time.Hour},
		ClassRead:     {Limit: 500, Window: time.Hour},
		ClassAdmin:    {Limit: 50, Window: time.Hour},
	}
}

// defaultRule applies to classes with no configured rule.
var defaultRule = Rule{Limit: 200, Window: time.Minute}

// Limiter decides whether a request is admitted right now.
//
// Admit records one request for (key, class) at time now and returns nil
// when admitted. When the bucket for the current window is already full
// it returns a rate_limited error carrying the seconds until the window
// resets, without incrementing further. Denial is retryable, never fatal.
type Limiter interface {
	Admit(ctx context.Context, key string, class Class, now time.Time) error
}

func denied(retryAfter time.Duration) error {
	secs := int(retryAfter / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &apperr.Error{
		Kind:       apperr.RateLimited,
		Message:    "Too many requests. Please try again later.",
		RetryAfter: secs,
	}
}
