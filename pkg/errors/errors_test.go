package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("approval", "a1b2c3")

	if !IsNotFound(err) {
		t.Error("expected IsNotFound to return true")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound) to return true")
	}
	if got := err.Error(); got != "approval a1b2c3 not found" {
		t.Errorf("unexpected message: %q", got)
	}

	// Wrapped errors still match the sentinel.
	wrapped := fmt.Errorf("resolving callback: %w", err)
	if !IsNotFound(wrapped) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
}

func TestForbiddenError(t *testing.T) {
	err := NewForbiddenError("user#1234", "approve")

	if !IsForbidden(err) {
		t.Error("expected IsForbidden to return true")
	}
	if IsNotFound(err) {
		t.Error("ForbiddenError must not match ErrNotFound")
	}
}

func TestBelowFloorError(t *testing.T) {
	err := &BelowFloorError{Key: "widget|standard", Proposed: 0.45, Floor: 1.00}

	if !IsBelowFloor(err) {
		t.Error("expected IsBelowFloor to return true")
	}
	if got := err.Error(); got != "proposed price 0.45 for widget|standard is below floor 1.00" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestAlreadyPendingError(t *testing.T) {
	err := &AlreadyPendingError{Key: "widget|premium", ApprovalID: "ab12cd34"}
	if !IsAlreadyPending(err) {
		t.Error("expected IsAlreadyPending to return true")
	}
}

func TestFetchErrorTransient(t *testing.T) {
	base := errors.New("connection reset")
	err := NewFetchError("market", 3, 0, base)

	if !IsTransient(err) {
		t.Error("FetchError should be transient")
	}
	if !errors.Is(err, base) {
		t.Error("expected Unwrap to expose the underlying error")
	}

	withStatus := NewFetchError("shopfront", 1, 502, base)
	if got := withStatus.Error(); got != "fetch from shopfront page 1 failed (status 502): connection reset" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestMutationErrorTransient(t *testing.T) {
	err := &MutationError{VariantID: 42, StatusCode: 503}
	if !IsTransient(err) {
		t.Error("MutationError should be transient")
	}

	wrapped := fmt.Errorf("applying approval: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped MutationError should stay transient")
	}
}

func TestWorkflowRefusalsAreNotTransient(t *testing.T) {
	for _, err := range []error{
		NewNotFoundError("approval", "x"),
		NewForbiddenError("u", "decline"),
		&BelowFloorError{Key: "k", Proposed: 0.1, Floor: 1},
	} {
		if IsTransient(err) {
			t.Errorf("%T must not be transient", err)
		}
	}
}

func TestWrapHelpers(t *testing.T) {
	if WrapFetch("market", 1, nil) != nil {
		t.Error("WrapFetch(nil) should return nil")
	}
	if WrapPersistence("snapshot", "write", nil) != nil {
		t.Error("WrapPersistence(nil) should return nil")
	}

	err := WrapPersistence("pending_actions", "read", errors.New("eof"))
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatal("expected a PersistenceError")
	}
	if pe.Slot != "pending_actions" || pe.Operation != "read" {
		t.Errorf("unexpected fields: %+v", pe)
	}
}

func TestValidationError(t *testing.T) {
	err := WrapValidation("interval", errors.New("must be positive"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}
