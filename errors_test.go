package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMapper_Map(t *testing.T) {
	m := NewErrorMapper(testSecret)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid token", newError(KindInvalidToken, "token has invalid issuer", nil), http.StatusUnauthorized, "Invalid Token: token has invalid issuer"},
		{"malformed token", newError(KindMalformedToken, "token is malformed", nil), http.StatusUnauthorized, "Invalid Token: token is malformed"},
		{"expired token", newError(KindTokenExpired, "token is expired", nil), http.StatusUnauthorized, "Token Expired: token is expired"},
		{"missing token", ErrMissingToken, http.StatusUnauthorized, "Full authentication is required to access this resource"},
		{"user not found", userNotFound("username", "bob"), http.StatusNotFound, "User not found: user not found with username: bob"},
		{"username taken", ErrUsernameTaken, http.StatusConflict, "Username is already taken!"},
		{"email taken", ErrEmailTaken, http.StatusConflict, "Email is already in use!"},
		{"bad credentials hides cause", newError(KindBadCredentials, "x", userNotFound("username", "bob")), http.StatusUnauthorized, "Invalid credentials"},
		{"account disabled", ErrAccountDisabled, http.StatusForbidden, "Account is disabled"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "Access denied"},
		{"validation", ValidationError(map[string]string{"email": "must be a valid email address"}), http.StatusBadRequest, "Validation failed"},
		{"too many requests", ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
		{"route not found", newError(KindNotFound, "No handler found for GET /x", nil), http.StatusNotFound, "No handler found for GET /x"},
		{"method not allowed", newError(KindMethodNotAllowed, "Request method 'PUT' is not supported", nil), http.StatusMethodNotAllowed, "Request method 'PUT' is not supported"},
		{"internal passthrough", newError(KindInternal, "failed to sign token", errors.New("boom")), http.StatusInternalServerError, "failed to sign token: boom"},
		{"foreign error", errors.New("disk full"), http.StatusInternalServerError, "An unexpected error occurred: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := m.Map(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, resp.Message)
			assert.False(t, resp.Success)
		})
	}
}

func TestErrorMapper_ValidationCarriesFields(t *testing.T) {
	fields := map[string]string{"username": "cannot be blank"}
	_, resp := NewErrorMapper().Map(ValidationError(fields))
	assert.Equal(t, fields, resp.Data)
}

func TestErrorMapper_RedactsSecrets(t *testing.T) {
	m := NewErrorMapper(testSecret, "", "pg-password")

	_, resp := m.Map(fmt.Errorf("connect with %s and %s", testSecret, "pg-password"))
	assert.NotContains(t, resp.Message, testSecret)
	assert.NotContains(t, resp.Message, "pg-password")
	assert.Contains(t, resp.Message, "[REDACTED]")

	_, resp = m.Map(newError(KindInternal, "signing with "+testSecret, nil))
	assert.NotContains(t, resp.Message, testSecret)
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindTokenExpired, "token is expired", errors.New("cause")))

	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, KindTokenExpired, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "TOKEN_EXPIRED", KindTokenExpired.String())
	assert.Equal(t, "INTERNAL_ERROR", Kind(999).String())
}

func TestWriteError_Envelope(t *testing.T) {
	app := newTestApp(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)

	app.writeError(rec, req, ErrForbidden)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"success":false,"message":"Access denied"}`, rec.Body.String())
}

func TestApp_RedactsDSNPassword(t *testing.T) {
	c := testConfig()
	c.PostgresDSN = "postgres://svc:dsn-only-pass@db:5432/auth"
	app := newTestAppWith(t, c, NewMemoryDB())

	_, resp := app.errors.Map(errors.New("dial postgres://svc:dsn-only-pass@db:5432/auth failed"))
	assert.NotContains(t, resp.Message, "dsn-only-pass")

	_, resp = app.errors.Map(errors.New("auth failed for password dsn-only-pass"))
	assert.NotContains(t, resp.Message, "dsn-only-pass")
}
