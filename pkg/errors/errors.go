// Package errors defines the error kinds shared by jobs, the ledger and the
// HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with Is.
var (
	// ErrValidation indicates bad caller input. No provider call is made.
	ErrValidation = errors.New("validation failed")

	// ErrBudgetExceeded indicates the budget policy denied the job.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrProvider indicates a text or image provider failed.
	ErrProvider = errors.New("provider error")

	// ErrTranscription indicates the transcriber failed.
	ErrTranscription = errors.New("transcription failed")

	// ErrDownload indicates the media download failed.
	ErrDownload = errors.New("download failed")

	// ErrPersistence indicates a ledger or artifact store write failed.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// KindError attaches a kind to an underlying cause.
type KindError struct {
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface.
func (e *KindError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a message.
func New(kind error, message string) error {
	return &KindError{Kind: kind, Message: message}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &KindError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Mark tags err with kind, keeping its message. A nil err stays nil.
func Mark(err, kind error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// ValidationError reports an invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Wrap annotates err with a message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message. A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// KindOf returns the first known kind err matches, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation, ErrBudgetExceeded, ErrProvider, ErrTranscription,
		ErrDownload, ErrPersistence, ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
