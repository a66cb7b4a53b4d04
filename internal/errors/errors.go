// Package errors provides custom error types for order lifecycle failures.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrIntentNotFound  = errors.New("intent not found")
	ErrNotPending      = errors.New("intent is not pending")
	ErrNotExecuted     = errors.New("intent is not executed")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrInvalidIntent   = errors.New("invalid intent")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrDatabaseError   = errors.New("database error")
	ErrOrderNotFound   = errors.New("order not found")
	ErrFillTimeout     = errors.New("entry order not filled within deadline")
	ErrDryRun          = errors.New("operation blocked: dry-run mode enabled")
)

// ConnectivityError means the broker is unreachable or the session is
// invalid. It aborts an entire entry run; intents stay PENDING.
type ConnectivityError struct {
	Operation string
	Err       error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity error [%s]: %v", e.Operation, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// NewConnectivityError creates a new ConnectivityError.
func NewConnectivityError(operation string, err error) *ConnectivityError {
	return &ConnectivityError{Operation: operation, Err: err}
}

// SubmissionError means the broker rejected or failed an order placement.
// It is scoped to one intent, which stays PENDING for a later attempt.
type SubmissionError struct {
	IntentID   int64
	Instrument string
	Leg        string // "entry" or "stop-loss"
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission error [intent %d] %s %s: %v", e.IntentID, e.Leg, e.Instrument, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError.
func NewSubmissionError(intentID int64, instrument, leg string, err error) *SubmissionError {
	return &SubmissionError{IntentID: intentID, Instrument: instrument, Leg: leg, Err: err}
}

// PartialExecutionError means the entry filled but the stop-loss submission
// failed: the position is open with no protective order. It must be surfaced
// for manual intervention and never silently retried, since a retry could
// place a duplicate stop-loss.
type PartialExecutionError struct {
	IntentID     int64
	Instrument   string
	EntryOrderID string
	Err          error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution [intent %d] %s: entry %s filled but stop-loss failed: %v",
		e.IntentID, e.Instrument, e.EntryOrderID, e.Err)
}

func (e *PartialExecutionError) Unwrap() error {
	return e.Err
}

// NewPartialExecutionError creates a new PartialExecutionError.
func NewPartialExecutionError(intentID int64, instrument, entryOrderID string, err error) *PartialExecutionError {
	return &PartialExecutionError{IntentID: intentID, Instrument: instrument, EntryOrderID: entryOrderID, Err: err}
}

// ReconciliationError means one intent's status query failed during a
// reconciliation sweep. It is logged and skipped; the intent is retried on
// the next cycle.
type ReconciliationError struct {
	IntentID int64
	Check    string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation error [intent %d] %s: %v", e.IntentID, e.Check, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// NewReconciliationError creates a new ReconciliationError.
func NewReconciliationError(intentID int64, check string, err error) *ReconciliationError {
	return &ReconciliationError{IntentID: intentID, Check: check, Err: err}
}

// ValidationError represents an invalid field on an incoming intent.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
