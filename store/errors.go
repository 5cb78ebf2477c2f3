package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("salestrack/store: item not found")

	// ErrAlreadyExists is returned when a put-if-absent finds a live item at the key.
	ErrAlreadyExists = errors.New("salestrack/store: item already exists")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("salestrack/store: item was modified concurrently")

	// ErrConditionFailed is returned by Transact when one of the write conditions fails.
	ErrConditionFailed = errors.New("salestrack/store: transaction condition failed")

	// ErrUnavailable wraps infrastructure failures reported by the underlying engine.
	ErrUnavailable = errors.New("salestrack/store: store unavailable")

	// ErrInvalidKey is returned when an item is written without a partition or sort key.
	ErrInvalidKey = errors.New("salestrack/store: item is missing pk or sk")
)

// TxConditionError reports which write of a transaction failed its condition.
type TxConditionError struct {
	// Index is the position of the failing write in the Transact call.
	Index int

	// Err is the per-write outcome (ErrAlreadyExists, ErrNotFound or ErrConcurrentModification).
	Err error
}

func (e *TxConditionError) Error() string {
	return fmt.Sprintf("%s: write %d: %v", ErrConditionFailed, e.Index, e.Err)
}

// Is matches ErrConditionFailed as well as the per-write outcome.
func (e *TxConditionError) Is(target error) bool {
	return target == ErrConditionFailed || errors.Is(e.Err, target)
}

func (e *TxConditionError) Unwrap() error { return e.Err }

// unavailable wraps an engine error so callers can classify it without losing the original.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
