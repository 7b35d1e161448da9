package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/whobuiltmyroad/backend/internal/apperr"
)

func testRules() map[Class]Rule {
	return map[Class]Rule{
		ClassSubmit:   {Limit: 3, Window: time.Minute},
		ClassFeedback: {Limit: 2, Window: time.Minute},
	}
}

func TestAdmitUpToLimitThenDeny(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := m.Admit(context.Background(), "user-1", ClassSubmit, now); err != nil {
			t.Fatalf("request %d unexpectedly denied: %v", i+1, err)
		}
	}

	err := m.Admit(context.Background(), "user-1", ClassSubmit, now.Add(time.Second))
	if err == nil {
		t.Fatal("request over the limit was admitted")
	}
	if !apperr.Is(err, apperr.RateLimited) {
		t.Errorf("denial has kind %s, want %s", apperr.KindOf(err), apperr.RateLimited)
	}
}

func TestWindowResetAdmitsAgain(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now)
	}
	if err := m.Admit(context.Background(), "user-1", ClassSubmit, now.Add(30*time.Second)); err == nil {
		t.Fatal("expected denial inside the window")
	}

	// One full window later the bucket resets and counting starts over.
	later := now.Add(time.Minute)
	if err := m.Admit(context.Background(), "user-1", ClassSubmit, later); err != nil {
		t.Fatalf("request after window reset denied: %v", err)
	}
}

func TestDenialDoesNotConsumeBudget(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now)
	}
	// Hammering while denied must not extend the lockout past the window.
	for i := 0; i < 50; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now.Add(time.Duration(i)*time.Second))
	}

	if err := m.Admit(context.Background(), "user-1", ClassSubmit, now.Add(time.Minute)); err != nil {
		t.Fatalf("window reset blocked by denied requests: %v", err)
	}
}

func TestClassesHaveIndependentBuckets(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now)
	}
	if err := m.Admit(context.Background(), "user-1", ClassSubmit, now); err == nil {
		t.Fatal("submit class should be exhausted")
	}

	if err := m.Admit(context.Background(), "user-1", ClassFeedback, now); err != nil {
		t.Fatalf("feedback class shares submit's bucket: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now)
	}
	if err := m.Admit(context.Background(), "user-2", ClassSubmit, now); err != nil {
		t.Fatalf("one identity's exhaustion denied another: %v", err)
	}
}

func TestDenialReportsRetryAfter(t *testing.T) {
	m := NewMemory(testRules())
	now := time.Now()

	for i := 0; i < 3; i++ {
		m.Admit(context.Background(), "user-1", ClassSubmit, now)
	}

	err := m.Admit(context.Background(), "user-1", ClassSubmit, now.Add(15*time.Second))
	var ae *apperr.Error
	if err == nil {
		t.Fatal("expected denial")
	}
	if !asAppError(err, &ae) {
		t.Fatalf("denial is not an apperr.Error: %v", err)
	}
	if ae.RetryAfter < 1 || ae.RetryAfter > 45 {
		t.Errorf("retry-after %ds outside the remaining window", ae.RetryAfter)
	}
}

func TestConcurrentAdmitsRespectLimit(t *testing.T) {
	rules := map[Class]Rule{ClassSubmit: {Limit: 50, Window: time.Minute}}
	m := NewMemory(rules)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Admit(context.Background(), "user-1", ClassSubmit, now); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 50 {
		t.Errorf("admitted %d of 200 concurrent requests, want exactly 50", admitted)
	}
}

func asAppError(err error, target **apperr.Error) bool {
	ae, ok := err.(*apperr.Error)
	if ok {
		*target = ae
	}
	return ok
}
