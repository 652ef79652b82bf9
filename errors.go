package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a failure for the error mapper.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindInvalidToken
	KindMalformedToken
	KindTokenExpired
	KindMissingToken
	KindUserNotFound
	KindUsernameTaken
	KindEmailTaken
	KindBadCredentials
	KindAccountDisabled
	KindForbidden
	KindValidation
	KindTooManyRequests
	KindUnavailable
	KindNotFound
	KindMethodNotAllowed
)

var kindNames = map[Kind]string{
	KindInternal:         "INTERNAL_ERROR",
	KindInvalidArgument:  "INVALID_ARGUMENT",
	KindInvalidToken:     "INVALID_TOKEN",
	KindMalformedToken:   "MALFORMED_TOKEN",
	KindTokenExpired:     "TOKEN_EXPIRED",
	KindMissingToken:     "MISSING_TOKEN",
	KindUserNotFound:     "USER_NOT_FOUND",
	KindUsernameTaken:    "USERNAME_TAKEN",
	KindEmailTaken:       "EMAIL_TAKEN",
	KindBadCredentials:   "BAD_CREDENTIALS",
	KindAccountDisabled:  "ACCOUNT_DISABLED",
	KindForbidden:        "FORBIDDEN",
	KindValidation:       "VALIDATION_FAILED",
	KindTooManyRequests:  "TOO_MANY_REQUESTS",
	KindUnavailable:      "SERVICE_UNAVAILABLE",
	KindNotFound:         "NOT_FOUND",
	KindMethodNotAllowed: "METHOD_NOT_ALLOWED",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindInternal]
}

// Error is the typed failure raised anywhere in the auth flow.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrInvalidToken    = &Error{Kind: KindInvalidToken, Message: "token is invalid"}
	ErrMalformedToken  = &Error{Kind: KindMalformedToken, Message: "token is malformed"}
	ErrTokenExpired    = &Error{Kind: KindTokenExpired, Message: "token is expired"}
	ErrMissingToken    = &Error{Kind: KindMissingToken, Message: "Full authentication is required to access this resource"}
	ErrUserNotFound    = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUsernameTaken   = &Error{Kind: KindUsernameTaken, Message: "Username is already taken!"}
	ErrEmailTaken      = &Error{Kind: KindEmailTaken, Message: "Email is already in use!"}
	ErrBadCredentials  = &Error{Kind: KindBadCredentials, Message: "Invalid credentials"}
	ErrAccountDisabled = &Error{Kind: KindAccountDisabled, Message: "Account is disabled"}
	ErrForbidden       = &Error{Kind: KindForbidden, Message: "Access denied"}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests, Message: "Too many requests"}
	ErrUnavailable     = &Error{Kind: KindUnavailable, Message: "Service unavailable"}
)

// ValidationError carries a field -> message map of input constraint violations.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ApiResponse is the envelope written for every response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorMapper turns any error into a status code and envelope.
type ErrorMapper struct {
	// secrets are scrubbed from messages that are passed through verbatim.
	secrets []string
}

func NewErrorMapper(secrets ...string) *ErrorMapper {
	m := &ErrorMapper{}
	for _, s := range secrets {
		if s != "" {
			m.secrets = append(m.secrets, s)
		}
	}
	return m
}

func (m *ErrorMapper) redact(s string) string {
	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	return s
}

// Map is total: anything it does not recognise becomes a 500.
func (m *ErrorMapper) Map(err error) (int, ApiResponse) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, ApiResponse{
			Message: m.redact("An unexpected error occurred: " + err.Error()),
		}
	}

	switch e.Kind {
	case KindInvalidToken, KindMalformedToken:
		return http.StatusUnauthorized, ApiResponse{Message: "Invalid Token: " + e.Message}
	case KindTokenExpired:
		return http.StatusUnauthorized, ApiResponse{Message: "Token Expired: " + e.Message}
	case KindMissingToken:
		return http.StatusUnauthorized, ApiResponse{Message: e.Message}
	case KindBadCredentials:
		// never echo the cause; it says whether the user exists
		return http.StatusUnauthorized, ApiResponse{Message: ErrBadCredentials.Message}
	case KindUserNotFound:
		return http.StatusNotFound, ApiResponse{Message: "User not found: " + e.Message}
	case KindUsernameTaken, KindEmailTaken:
		return http.StatusConflict, ApiResponse{Message: e.Message}
	case KindAccountDisabled, KindForbidden:
		return http.StatusForbidden, ApiResponse{Message: e.Message}
	case KindValidation:
		resp := ApiResponse{Message: e.Message}
		if len(e.Fields) > 0 {
			resp.Data = e.Fields
		}
		return http.StatusBadRequest, resp
	case KindTooManyRequests:
		return http.StatusTooManyRequests, ApiResponse{Message: e.Message}
	case KindUnavailable:
		return http.StatusServiceUnavailable, ApiResponse{Message: e.Message}
	case KindNotFound:
		return http.StatusNotFound, ApiResponse{Message: e.Message}
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed, ApiResponse{Message: e.Message}
	default:
		return http.StatusInternalServerError, ApiResponse{Message: m.redact(e.Error())}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess writes a success envelope
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, ApiResponse{Success: true, Message: message, Data: data})
}

// writeError maps err and writes the failure envelope, logging by severity.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := a.errors.Map(err)
	resp.Success = false

	log := a.log.With("method", r.Method, "path", r.URL.Path, "status", status, "kind", KindOf(err).String())
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "err", a.errors.redact(err.Error()))
	} else {
		log.DebugContext(r.Context(), "request rejected", "err", err.Error())
	}

	writeJSON(w, status, resp)
}
