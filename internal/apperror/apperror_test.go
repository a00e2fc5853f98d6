package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("create appointment: %w", Conflict("provider is already booked"))

	if KindOf(err) != KindConflict {
		t.Fatalf("KindOf = %q, want %q", KindOf(err), KindConflict)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected errors.Is(err, ErrConflict)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match ErrNotFound")
	}
}

func TestKindOf_InfrastructureFailure(t *testing.T) {
	if k := KindOf(errors.New("connection refused")); k != "" {
		t.Fatalf("KindOf = %q, want empty kind", k)
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("appointment")
	if err.Error() != "appointment not found" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("23P01")
	err := Wrap(KindConflict, "overlapping booking", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if err.Error() != "overlapping booking: 23P01" {
		t.Fatalf("message = %q", err.Error())
	}
}
