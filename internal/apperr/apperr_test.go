package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{InvalidImage, http.StatusBadRequest},
		{Authorization, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{InvalidState, http.StatusConflict},
		{InvalidTransition, http.StatusConflict},
		{RateLimited, http.StatusTooManyRequests},
		{Upstream, http.StatusBadGateway},
	}

	for _, c := range cases {
		if got := Status(New(c.kind, "x")); got != c.want {
			t.Errorf("Status(%s) = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestUnknownErrorIsOpaque(t *testing.T) {
	err := errors.New("connection refused: mongodb://internal-host:27017")

	if Status(err) != http.StatusBadGateway {
		t.Errorf("unexpected status for unknown error: %d", Status(err))
	}
	if msg := Message(err); msg != "An unexpected error occurred" {
		t.Errorf("internal detail leaked to caller: %q", msg)
	}
}

func TestWrappedKindSurvives(t *testing.T) {
	inner := Wrap(InvalidTransition, "road is not pending", errors.New("matched 0 documents"))
	outer := fmt.Errorf("approve road: %w", inner)

	if !Is(outer, InvalidTransition) {
		t.Errorf("kind lost through wrapping: got %s", KindOf(outer))
	}
	if Message(outer) != "road is not pending" {
		t.Errorf("unexpected message: %q", Message(outer))
	}
}
