// Package domainerrors gives claim, identity and credential failures a stable
// code that the HTTP layer maps to a status and the tracer to a span outcome.
package domainerrors

import "errors"

// Code names a failure in claim lifecycle terms, never in HTTP terms.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeTooLarge     Code = "payload_too_large"

	CodeDecisionConflict Code = "decision_conflict"  // lost the conditional update on a decision
	CodeUnavailable      Code = "unavailable"        // identity directory unreachable or malformed
	CodeIdentityNotFound Code = "identity_not_found" // DID unknown to the identity directory
	CodeSigningFailed    Code = "signing_failed"
	CodeEncryptionFailed Code = "encryption_failed" // holder key unusable or sealing failed
)

// ServerFault reports whether the code means the service failed, as opposed
// to the caller asking for something it cannot have.
func (c Code) ServerFault() bool {
	switch c {
	case CodeInternal, CodeUnavailable, CodeTimeout, CodeSigningFailed, CodeEncryptionFailed:
		return true
	}
	return false
}

// Error carries a Code through store, service and handler layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A code already present in err's chain wins over code.
func Wrap(err error, code Code, msg string) error {
	if existing, ok := CodeOf(err); ok {
		code = existing
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the first code found in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
