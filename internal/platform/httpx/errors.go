package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Public messages returned to end users. Internal detail never reaches a response body.
const (
	MsgUnauthorized = "Unauthorized"
	MsgForbidden    = "Forbidden"
	MsgInternal     = "Internal server error"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, MsgForbidden, "")
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, MsgUnauthorized, "")
	default:
		Problem(w, http.StatusInternalServerError, MsgInternal, "")
	}
}

// StatusForMessage maps one of the public messages to its HTTP status.
func StatusForMessage(msg string) int {
	switch msg {
	case MsgUnauthorized:
		return http.StatusUnauthorized
	case MsgForbidden:
		return http.StatusForbidden
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
