// Package exception provides the error taxonomy for the ACWR migration
// subsystem. Every error raised by the engine is classified into a Kind so
// that callers can distinguish data-quality problems (recorded in result
// objects, processing continues) from infrastructure failures (always fatal
// to the current unit of work).
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind classifies a MigrationError.
type Kind int

const (
	// KindValidation indicates bad input (unknown subject, missing
	// configuration). Surfaced immediately, never retried.
	KindValidation Kind = iota
	// KindEmptyDataset indicates a subject with nothing to migrate. It is a
	// no-op success condition, not a failure.
	KindEmptyDataset
	// KindConcurrency indicates a second batch-processing or rollback run was
	// attempted while one is active. Callers fail fast and may retry later.
	KindConcurrency
	// KindBatchExecution indicates a single batch's transform or write failed.
	// It is recorded, counted and re-raised to the orchestrating layer.
	KindBatchExecution
	// KindIntegrity indicates a post-condition check failed. It blocks
	// migration or rollback completion and is never silently downgraded.
	KindIntegrity
	// KindInfrastructure indicates the store or a connection is unreachable.
	// Always fatal to the current operation.
	KindInfrastructure
)

// String returns the human-readable name of the Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEmptyDataset:
		return "empty_dataset"
	case KindConcurrency:
		return "concurrency"
	case KindBatchExecution:
		return "batch_execution"
	case KindIntegrity:
		return "integrity"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// MigrationError is the error type used throughout the migration engine.
// It holds the module where the error occurred, a message, the wrapped
// original error, and its taxonomy Kind.
type MigrationError struct {
	// Module indicates the component where the error occurred
	// (e.g. "orchestrator", "processor", "rollback", "validator").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// kind is the taxonomy classification.
	kind Kind
	// StackTrace is the stack trace captured at construction (for debugging).
	StackTrace string
}

// New creates a new MigrationError of the given Kind.
func New(kind Kind, module, message string, originalErr error) *MigrationError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &MigrationError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		kind:        kind,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new MigrationError with a formatted message and no cause.
func Newf(kind Kind, module, format string, a ...interface{}) *MigrationError {
	return New(kind, module, fmt.Sprintf(format, a...), nil)
}

// NewValidationError creates a MigrationError of kind Validation.
func NewValidationError(module, message string, originalErr error) *MigrationError {
	return New(KindValidation, module, message, originalErr)
}

// NewEmptyDatasetError creates a MigrationError of kind EmptyDataset.
func NewEmptyDatasetError(module, message string) *MigrationError {
	return New(KindEmptyDataset, module, message, nil)
}

// NewConcurrencyError creates a MigrationError of kind Concurrency.
func NewConcurrencyError(module, message string) *MigrationError {
	return New(KindConcurrency, module, message, nil)
}

// NewBatchExecutionError creates a MigrationError of kind BatchExecution.
func NewBatchExecutionError(module, message string, originalErr error) *MigrationError {
	return New(KindBatchExecution, module, message, originalErr)
}

// NewIntegrityError creates a MigrationError of kind Integrity.
func NewIntegrityError(module, message string, originalErr error) *MigrationError {
	return New(KindIntegrity, module, message, originalErr)
}

// NewInfrastructureError creates a MigrationError of kind Infrastructure.
func NewInfrastructureError(module, message string, originalErr error) *MigrationError {
	return New(KindInfrastructure, module, message, originalErr)
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *MigrationError) Unwrap() error {
	return e.OriginalErr
}

// Kind returns the taxonomy classification of this error.
func (e *MigrationError) Kind() Kind {
	return e.kind
}

// IsFatal reports whether this error must abort the current unit of work.
// Infrastructure and integrity failures are fatal; everything else is
// recorded and handled by the orchestrating layer.
func (e *MigrationError) IsFatal() bool {
	return e.kind == KindInfrastructure || e.kind == KindIntegrity
}

// IsKind reports whether err (or any error it wraps) is a MigrationError of
// the given Kind.
func IsKind(err error, kind Kind) bool {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.kind == kind
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsEmptyDataset reports whether err is an empty-dataset condition.
func IsEmptyDataset(err error) bool { return IsKind(err, KindEmptyDataset) }

// IsConcurrency reports whether err is a concurrency fail-fast.
func IsConcurrency(err error) bool { return IsKind(err, KindConcurrency) }

// IsBatchExecution reports whether err is a batch execution failure.
func IsBatchExecution(err error) bool { return IsKind(err, KindBatchExecution) }

// IsIntegrity reports whether err is an integrity check failure.
func IsIntegrity(err error) bool { return IsKind(err, KindIntegrity) }

// IsInfrastructure reports whether err is an infrastructure failure.
// Infrastructure failures always propagate up and abort the current batch,
// migration or rollback step; they are never converted to warnings.
func IsInfrastructure(err error) bool { return IsKind(err, KindInfrastructure) }

// ExtractErrorMessage extracts the message string from an error.
// For MigrationError it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Message
	}
	return err.Error()
}
