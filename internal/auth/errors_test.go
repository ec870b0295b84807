package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr struct {
	status int
}

func (e statusErr) Error() string   { return "upstream failure" }
func (e statusErr) StatusCode() int { return e.status }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not propagated", newError(CodeSessionNotPropagated, "", nil), true},
		{"wrapped not propagated", fmt.Errorf("refresh: %w", newError(CodeSessionNotPropagated, "", nil)), true},
		{"structured session code is definitive", newError(CodeSessionMissing, "session gone", nil), false},
		{"structured token code is definitive", newError(CodeTokenExpired, "", nil), false},
		{"structured 401 status is not consulted", &Error{Code: CodeRefreshFailed, Status: http.StatusUnauthorized}, false},
		{"foreign 401", statusErr{status: http.StatusUnauthorized}, true},
		{"foreign 500", statusErr{status: http.StatusInternalServerError}, false},
		{"foreign jwt message", errors.New("JWT expired"), true},
		{"foreign cookie message", errors.New("cookie header truncated"), true},
		{"foreign other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestUnauthenticatedError(t *testing.T) {
	cause := newError(CodeTokenInvalid, "", nil)
	err := fmt.Errorf("resolve: %w", &UnauthenticatedError{Reason: ReasonInvalidCredential, Cause: cause})

	assert.ErrorIs(t, err, ErrUnauthenticated)
	reason, ok := ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonInvalidCredential, reason)
	assert.Equal(t, CodeTokenInvalid, CodeOf(err))

	_, ok = ReasonOf(errors.New("other"))
	assert.False(t, ok)
	assert.Equal(t, Code(""), CodeOf(errors.New("other")))
}
