package errors

import (
	"fmt"
	"sort"
	"strings"
)

// BatchItemError records the failure of one item in a batch operation
type BatchItemError struct {
	ID  string
	Err error
}

// BatchError aggregates per-item failures of a batch operation.
// Items that succeeded are listed so callers can report both sides.
type BatchError struct {
	Operation string
	Succeeded []string
	Failed    []BatchItemError
}

// Error implements the error interface
func (e *BatchError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return fmt.Sprintf("%s: %d of %d items failed (%s)",
		e.Operation, len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(ids, ", "))
}

// Unwrap exposes the per-item causes to errors.Is and errors.As
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// FailedIDs returns the ids of failed items in ascending order
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	sort.Strings(ids)
	return ids
}

// NewPartialBatchFailure returns nil when nothing failed, otherwise an AppError
// with code PARTIAL_BATCH_FAILURE wrapping the aggregate.
func NewPartialBatchFailure(operation string, succeeded []string, failed []BatchItemError) error {
	if len(failed) == 0 {
		return nil
	}
	batch := &BatchError{Operation: operation, Succeeded: succeeded, Failed: failed}
	err := NewAppError(ErrPartialBatchFailure, batch.Error(), batch)
	err.Context["succeeded"] = len(succeeded)
	err.Context["failed"] = len(failed)
	return err
}
