package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Code classifies identity-store failures.
type Code string

const (
	CodeTokenMissing         Code = "token_missing"
	CodeTokenInvalid         Code = "token_invalid"
	CodeTokenExpired         Code = "token_expired"
	CodeSessionMissing       Code = "session_missing"
	CodeSessionExpired       Code = "session_expired"
	CodeSessionNotPropagated Code = "session_not_propagated"
	CodeRefreshFailed        Code = "refresh_failed"
	CodeUserNotFound         Code = "user_not_found"
	CodeUserDisabled         Code = "user_disabled"
	CodeCookieInvalid        Code = "cookie_invalid"
)

// Error is a structured identity-store error.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return "auth: " + msg + ": " + e.Err.Error()
	}
	return "auth: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Status: http.StatusUnauthorized, Message: message, Err: err}
}

// CodeOf extracts the structured code of err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Reason explains why no principal could be resolved.
type Reason string

const (
	ReasonNoCredential      Reason = "no_credential"
	ReasonInvalidCredential Reason = "invalid_credential"
)

// ErrUnauthenticated matches every *UnauthenticatedError via errors.Is.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// UnauthenticatedError is the definitive outcome when no evidence resolved a principal.
type UnauthenticatedError struct {
	Reason Reason
	Cause  error
}

func (e *UnauthenticatedError) Error() string {
	if e.Cause != nil {
		return "auth: unauthenticated (" + string(e.Reason) + "): " + e.Cause.Error()
	}
	return "auth: unauthenticated (" + string(e.Reason) + ")"
}

func (e *UnauthenticatedError) Unwrap() error {
	return e.Cause
}

func (e *UnauthenticatedError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// ReasonOf returns the unauthenticated reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ue *UnauthenticatedError
	if errors.As(err, &ue) {
		return ue.Reason, true
	}
	return "", false
}

type statusCoder interface {
	StatusCode() int
}

// IsTransient reports whether err looks like a cookie/session propagation race
// rather than a genuinely invalid credential. Structured errors are classified
// by code only; foreign errors fall back to status and message inspection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == CodeSessionNotPropagated
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"session", "jwt", "cookie"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
