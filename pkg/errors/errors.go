// Package errors provides custom error types for the driftwatch system.
// These errors enable programmatic error checking across the reconciliation
// pipeline: transient fetch failures are distinguished from workflow
// refusals (forbidden, below floor) and from persistence problems, so call
// sites can decide between retry, skip, and user-visible responses.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the driftwatch system
var (
	// ErrNotFound indicates that a requested resource was not found.
	// For approval and bundle ids this usually means the entry was
	// already resolved by an earlier callback delivery.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the acting user lacks an allow-listed role
	ErrForbidden = errors.New("forbidden")

	// ErrBelowFloor indicates a proposed price is under the configured minimum
	ErrBelowFloor = errors.New("below price floor")

	// ErrAlreadyPending indicates an action already exists for the item key
	ErrAlreadyPending = errors.New("already pending")

	// ErrSuppressed indicates the item key is inside a suppression window
	ErrSuppressed = errors.New("suppressed")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the remote document store could not be reached
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a resource is not found.
// Resolution handlers translate it into an "expired or already handled"
// reply rather than logging it as a failure.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ForbiddenError represents a role-check refusal on a workflow operation
type ForbiddenError struct {
	Actor     string
	Operation string
}

// Error implements the error interface
func (e *ForbiddenError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("user %s is not permitted to %s", e.Actor, e.Operation)
	}
	return fmt.Sprintf("user %s is not permitted", e.Actor)
}

// Is implements errors.Is support
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// NewForbiddenError creates a new ForbiddenError
func NewForbiddenError(actor, operation string) *ForbiddenError {
	return &ForbiddenError{Actor: actor, Operation: operation}
}

// BelowFloorError represents a proposed price under the configured minimum.
// The pending entry is left in place for a human to resolve out-of-band.
type BelowFloorError struct {
	Key      string
	Proposed float64
	Floor    float64
}

// Error implements the error interface
func (e *BelowFloorError) Error() string {
	return fmt.Sprintf("proposed price %.2f for %s is below floor %.2f", e.Proposed, e.Key, e.Floor)
}

// Is implements errors.Is support
func (e *BelowFloorError) Is(target error) bool {
	return target == ErrBelowFloor
}

// AlreadyPendingError reports a violation of the single-pending-per-key rule
type AlreadyPendingError struct {
	Key        string
	ApprovalID string
}

// Error implements the error interface
func (e *AlreadyPendingError) Error() string {
	return fmt.Sprintf("action %s already pending for %s", e.ApprovalID, e.Key)
}

// Is implements errors.Is support
func (e *AlreadyPendingError) Is(target error) bool {
	return target == ErrAlreadyPending
}

// FetchError represents a transient failure against an external catalog API.
// Callers skip the affected unit of work (one page, one item) and continue.
type FetchError struct {
	Catalog    string // "market" or "shopfront"
	Page       int
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch from %s page %d failed (status %d): %v", e.Catalog, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch from %s page %d failed: %v", e.Catalog, e.Page, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(catalog string, page, statusCode int, err error) *FetchError {
	return &FetchError{Catalog: catalog, Page: page, StatusCode: statusCode, Err: err}
}

// MutationError represents a failed price write against the storefront API.
// Always retryable: the pending entry survives and the caller is told to
// try the click again.
type MutationError struct {
	VariantID  int64
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *MutationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("price update for variant %d failed (status %d)", e.VariantID, e.StatusCode)
	}
	return fmt.Sprintf("price update for variant %d failed: %v", e.VariantID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *MutationError) Unwrap() error {
	return e.Err
}

// PersistenceError represents a failure reading or writing a document slot
type PersistenceError struct {
	Slot      string
	Operation string // "read", "write"
	Err       error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s of %s: %v", e.Operation, e.Slot, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(slot, operation string, err error) *PersistenceError {
	return &PersistenceError{Slot: slot, Operation: operation, Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if an error is a role-check refusal
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsBelowFloor checks if an error is a price-floor refusal
func IsBelowFloor(err error) bool {
	return errors.Is(err, ErrBelowFloor)
}

// IsAlreadyPending checks if an error is a single-pending violation
func IsAlreadyPending(err error) bool {
	return errors.Is(err, ErrAlreadyPending)
}

// IsSuppressed checks if an error is a suppression-window skip
func IsSuppressed(err error) bool {
	return errors.Is(err, ErrSuppressed)
}

// IsValidation checks if an error is an invalid-input refusal
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTransient reports whether err is a recoverable external failure: the
// unit of work is skipped and the surrounding loop continues.
func IsTransient(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return true
	}
	var mutErr *MutationError
	if errors.As(err, &mutErr) {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrStoreUnavailable)
}

// Helper wrapping functions for common patterns

// WrapFetch wraps an error as a FetchError
func WrapFetch(catalog string, page int, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Catalog: catalog, Page: page, Err: err}
}

// WrapPersistence wraps an error as a PersistenceError
func WrapPersistence(slot, operation string, err error) error {
	if err == nil {
		return nil
	}
	return NewPersistenceError(slot, operation, err)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}
