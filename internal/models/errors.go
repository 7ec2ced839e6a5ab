package models

import (
	"errors"
	"fmt"
)

// InsufficientStockError rejects an OUT adjustment that would drive stock
// negative. No mutation has occurred when it is returned.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%d available=%d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidTransitionError rejects a status edge that is not in the entity's
// transition table. This is a hard business rule, never retried.
type InvalidTransitionError struct {
	Entity  string
	Current string
	Target  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.Current, e.Target)
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

// ConflictError reports a scheduling collision, e.g. a technician already
// booked for the requested slot. Callers may retry with a different slot.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// ValidationError rejects a malformed request before any mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ErrLockTimeout wraps a statement/lock timeout while waiting on a stock row
// held by a concurrent transaction. Retryable by the caller with backoff; the
// core never auto-retries.
var ErrLockTimeout = errors.New("lock wait timeout")

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
