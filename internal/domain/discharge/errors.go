package discharge

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeNotFound                 Code = "NOT_FOUND"
	CodeInvalidRecord            Code = "INVALID_RECORD"
	CodeAccessDenied             Code = "ACCESS_DENIED"
	CodePaymentRequired          Code = "PAYMENT_REQUIRED"
	CodePartialGenerationFailure Code = "PARTIAL_GENERATION_FAILURE"
	CodeUnexpected               Code = "UNEXPECTED_ERROR"
)

var (
	ErrNotFound       = errors.New("discharge record not found")
	ErrItemNotFound   = errors.New("checklist item not found")
	ErrNotInProgress  = errors.New("discharge record is not in progress")
	ErrAlreadyLinked  = errors.New("checklist item already has a task")
	ErrMalformedState = errors.New("discharge record has malformed wizard state")
)

// Error is returned by Generate. Its message is fixed per code so no record
// content or identifiers reach callers; Err keeps the cause for logs.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return publicMessage(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code carried by err, or UNEXPECTED_ERROR.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnexpected
}

func publicMessage(code Code) string {
	switch code {
	case CodeNotFound:
		return "discharge record not found"
	case CodeInvalidRecord:
		return "discharge record is incomplete or invalid"
	case CodeAccessDenied:
		return "not an active member of this care circle"
	case CodePaymentRequired:
		return "discharge planning requires a premium subscription"
	case CodePartialGenerationFailure:
		return "some items could not be created"
	}
	return "discharge outputs could not be generated"
}

// HTTPStatus maps a code to the status the invocation surface returns.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidRecord:
		return http.StatusUnprocessableEntity
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodePartialGenerationFailure:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
