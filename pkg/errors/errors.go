// Package errors defines the sentinel errors shared across the evaluation
// engine and an AppError type that carries a process exit code for the CLI.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFinalized     = errors.New("index not finalized")
	ErrAlreadyFinalized = errors.New("index already finalized")
	ErrIndexFinalized   = errors.New("index is read-only after finalize")
	ErrDocumentExists   = errors.New("document already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedInput   = errors.New("malformed input")
	ErrUnknownModel     = errors.New("unknown ranking model")
	ErrOutputFailed     = errors.New("output failed")
	ErrDatasetMissing   = errors.New("dataset missing")
	ErrInternal         = errors.New("internal error")
)

// Exit codes returned by the cranfield CLI.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitOutput   = 3
	ExitDataset  = 4
	ExitInternal = 70
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Is reports whether any error in err's chain matches target. It re-exports
// the standard library function so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// ExitCode maps err to the process exit code the CLI should terminate with.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownModel):
		return ExitUsage
	case errors.Is(err, ErrOutputFailed):
		return ExitOutput
	case errors.Is(err, ErrDatasetMissing):
		return ExitDataset
	case errors.Is(err, ErrNotFinalized), errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrIndexFinalized), errors.Is(err, ErrInternal):
		return ExitInternal
	default:
		return ExitFailure
	}
}
