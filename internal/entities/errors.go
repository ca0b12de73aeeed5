package entities

import "errors"

// ErrorCode is the machine-readable kind of a domain error.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyClaimed    ErrorCode = "ALREADY_CLAIMED"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeRequestClosed     ErrorCode = "REQUEST_CLOSED"
	CodeEmptyBody         ErrorCode = "EMPTY_BODY"
	CodeForbidden         ErrorCode = "FORBIDDEN"
)

// Error is the domain error returned by the request lifecycle.
type Error struct {
	Code     ErrorCode
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "request not found"}
	ErrAlreadyClaimed    = &Error{Code: CodeAlreadyClaimed, Message: "request already claimed"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrRequestClosed     = &Error{Code: CodeRequestClosed, Message: "request is closed"}
	ErrEmptyBody         = &Error{Code: CodeEmptyBody, Message: "message body is empty"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "operation not allowed for this role"}
)

func NewValidationError(field, message string) *Error {
	return &Error{
		Code:     CodeValidation,
		Message:  message,
		Metadata: map[string]string{"field": field},
	}
}

func NewNotFoundError(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

// NewAlreadyClaimedError names the agent that won the claim.
func NewAlreadyClaimedError(owner string) *Error {
	return &Error{
		Code:     CodeAlreadyClaimed,
		Message:  "request already claimed by " + owner,
		Metadata: map[string]string{"assigned_to": owner},
	}
}

func NewInvalidTransitionError(from RequestStatus, action string) *Error {
	return &Error{
		Code:     CodeInvalidTransition,
		Message:  "cannot " + action + " a " + string(from) + " request",
		Metadata: map[string]string{"status": string(from), "action": action},
	}
}

func NewRequestClosedError(status RequestStatus) *Error {
	return &Error{
		Code:     CodeRequestClosed,
		Message:  "request is " + string(status) + "; conversation is closed",
		Metadata: map[string]string{"status": string(status)},
	}
}

func NewForbiddenError(action string) *Error {
	return &Error{
		Code:     CodeForbidden,
		Message:  action + " requires a supervisor",
		Metadata: map[string]string{"action": action},
	}
}

// ClaimedBy extracts the winning agent from an ALREADY_CLAIMED error.
func ClaimedBy(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeAlreadyClaimed {
		owner, ok := de.Metadata["assigned_to"]
		return owner, ok
	}
	return "", false
}

// CodeOf returns the domain code of err, or "" for infrastructure errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
