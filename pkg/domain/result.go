package domain

import (
	"errors"
	"strings"
)

// Result codes
const (
	CodeConcurrencyFailure = "ConcurrencyFailure"
)

// ResultError describes one reason an operation failed.
type ResultError struct {
	Code        string
	Description string
}

// Result is the outcome of a create, update or delete call.
// Infrastructure failures are returned as errors, not as a failed Result.
type Result struct {
	Succeeded bool
	Errors    []ResultError
}

// Success is the successful Result.
func Success() Result {
	return Result{Succeeded: true}
}

// Failed builds an unsuccessful Result.
func Failed(errs ...ResultError) Result {
	return Result{Errors: errs}
}

// ConcurrencyFailure is returned when a write did not affect the expected document.
func ConcurrencyFailure() Result {
	return Failed(ResultError{
		Code:        CodeConcurrencyFailure,
		Description: "Optimistic concurrency failure, object has been modified.",
	})
}

// IsConcurrencyFailure reports whether the result carries a concurrency failure.
func (r Result) IsConcurrencyFailure() bool {
	for _, e := range r.Errors {
		if e.Code == CodeConcurrencyFailure {
			return true
		}
	}
	return false
}

// Err converts a failed Result into an error. A successful Result yields nil.
func (r Result) Err() error {
	if r.Succeeded {
		return nil
	}
	if r.IsConcurrencyFailure() {
		return ErrConcurrencyFailure
	}
	if len(r.Errors) == 0 {
		return errors.New("operation failed")
	}
	descs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		descs = append(descs, e.Description)
	}
	return errors.New(strings.Join(descs, "; "))
}

func (r Result) String() string {
	if r.Succeeded {
		return "Succeeded"
	}
	codes := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Code)
	}
	return "Failed : " + strings.Join(codes, ",")
}
