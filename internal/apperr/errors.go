// Package apperr defines the error taxonomy shared by the pipeline and
// checkout components. Errors carry a kind plus the identifiers needed to
// act on them, instead of free-form strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation decisions
type Kind string

const (
	// KindNotFound - the referenced job, order or variant does not exist
	KindNotFound Kind = "not_found"
	// KindInvalidState - the operation is not allowed in the current state
	KindInvalidState Kind = "invalid_state"
	// KindValidation - malformed caller input, never retried
	KindValidation Kind = "validation"
	// KindUpstream - external supplier/provider/gateway timeout or non-2xx
	KindUpstream Kind = "upstream_unavailable"
)

// Error is a tagged error with structured context
type Error struct {
	Kind    Kind
	Msg     string
	JobID   int64
	OrderID int64
	ItemID  int64
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so callers can use
// errors.Is(err, apperr.NotFound("")) style sentinels via IsKind instead.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound builds a not-found error
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// InvalidState builds an invalid-state error
func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Msg: msg}
}

// Validation builds a validation error
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Upstream wraps an external call failure
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

// WithJob attaches a job id
func (e *Error) WithJob(id int64) *Error {
	e.JobID = id
	return e
}

// WithOrder attaches an order id
func (e *Error) WithOrder(id int64) *Error {
	e.OrderID = id
	return e
}

// WithItem attaches an order item id
func (e *Error) WithItem(id int64) *Error {
	e.ItemID = id
	return e
}

// IsKind reports whether err is an apperr.Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
