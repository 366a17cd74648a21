package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
	"github.com/mcoot/ultratic/internal/services/stats"
)

// APIError represents an API error response body
type APIError struct {
	Message string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNoSession        = "NO_SESSION"
	CodeGameNotFound     = "GAME_NOT_FOUND"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeGameDecided      = "GAME_DECIDED"
	CodePersistenceError = "PERSISTENCE_ERROR"
	CodeSessionError     = "SESSION_ERROR"
	CodeUnavailable      = "UNAVAILABLE"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(he.apiError)
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		return &httpError{http.StatusBadRequest, APIError{Message: verr.Message, Code: CodeInvalidRequest}}
	}

	var perr *lifecycle.PersistenceError
	if errors.As(err, &perr) {
		details := perr.Err.Error()
		switch {
		case errors.Is(perr.Err, model.ErrGameAlreadyDecided):
			return &httpError{http.StatusConflict, APIError{"Game has already been decided", CodeGameDecided, details}}
		case errors.Is(perr.Err, model.ErrGameNotFound), errors.Is(perr.Err, model.ErrGameOwnerMismatch):
			return &httpError{http.StatusNotFound, APIError{"Game not found", CodeGameNotFound, details}}
		case errors.Is(perr.Err, model.ErrUserNotFound):
			return &httpError{http.StatusNotFound, APIError{"User not found", CodeUserNotFound, details}}
		}
		return &httpError{http.StatusInternalServerError, APIError{"Failed to " + perr.Op, CodePersistenceError, details}}
	}

	var terr *lifecycle.TokenWriteError
	if errors.As(err, &terr) {
		return &httpError{http.StatusInternalServerError, APIError{"Failed to write session", CodeSessionError, terr.Err.Error()}}
	}

	var lerr *stats.LedgerError
	if errors.As(err, &lerr) {
		return &httpError{http.StatusInternalServerError, APIError{"Failed to " + lerr.Op, CodePersistenceError, lerr.Err.Error()}}
	}

	switch {
	case errors.Is(err, model.ErrInvalidWinner):
		return &httpError{http.StatusBadRequest, APIError{Message: err.Error(), Code: CodeInvalidRequest}}
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{Message: "Game not found", Code: CodeGameNotFound}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{Message: "Internal server error", Code: CodeInternalError}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Message: message, Code: CodeInvalidRequest}}
}

// NewNoSessionError is returned by reads that need a session
func NewNoSessionError() error {
	return &httpError{http.StatusUnauthorized, APIError{Message: "No active session", Code: CodeNoSession}}
}

// NewUnavailableError reports a dependency that is down
func NewUnavailableError(details string) error {
	return &httpError{http.StatusServiceUnavailable, APIError{"Service unavailable", CodeUnavailable, details}}
}

// NewRecoveredPanicError is written when a handler panics. Details carries
// the request ID so the response can be matched to the logged stack.
func NewRecoveredPanicError(requestID string) error {
	he := &httpError{http.StatusInternalServerError, APIError{Message: "Internal server error", Code: CodeInternalError}}
	if requestID != "" {
		he.apiError.Details = "request_id=" + requestID
	}
	return he
}

// NewNotFoundError is returned for unknown routes
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{Message: "Not found", Code: CodeNotFound}}
}

// NewMethodNotAllowedError is returned for a known route with the wrong method
func NewMethodNotAllowedError() error {
	return &httpError{http.StatusMethodNotAllowed, APIError{Message: "Method not allowed", Code: CodeMethodNotAllowed}}
}
