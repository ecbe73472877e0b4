package hybridengine

import (
	"errors"
	"fmt"

	"github.com/nsvector/hybridengine/vectorindex"
)

var (
	// ErrDuplicateID is returned when Insert or BatchInsert is given a
	// public id that is already live, or repeated within one batch.
	ErrDuplicateID = errors.New("hybridengine: duplicate id")

	// ErrNotFound is returned when Update targets a public id that is not
	// currently live in the namespace.
	ErrNotFound = errors.New("hybridengine: not found")

	// ErrCapacityExhausted is returned when a write would require
	// next_slot to exceed max_elements and the free list is empty.
	ErrCapacityExhausted = errors.New("hybridengine: capacity exhausted")

	// ErrBadWeights is returned when a weighted hybrid search's
	// vector_weight and text_weight do not sum to exactly 1.0.
	ErrBadWeights = errors.New("hybridengine: vector_weight + text_weight must equal 1.0")

	// ErrLoadCorrupt is returned when Load's persisted files are missing
	// or internally inconsistent.
	ErrLoadCorrupt = errors.New("hybridengine: load corrupt")

	// ErrCompactionThrottled is returned by Compact when it is called
	// again for the same namespace before its configured compaction
	// interval has elapsed since the last compaction (manual or timer
	// driven).
	ErrCompactionThrottled = errors.New("hybridengine: compaction throttled")
)

// ErrDimensionMismatch indicates a vector or query whose length does not
// match the namespace's configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hybridengine: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// dimensionError builds an *ErrDimensionMismatch for a precondition check;
// it does not wrap a lower-level cause because the check happens before
// any adapter call is made.
func dimensionError(expected, actual int) error {
	return &ErrDimensionMismatch{Expected: expected, Actual: actual}
}

// translateError normalizes errors surfacing from the vectorindex adapter
// into the sentinel kinds this package exposes, keeping lower-level
// index errors from leaking past the public API untranslated.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vectorindex.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
