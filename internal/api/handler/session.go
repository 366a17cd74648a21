package handler

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/api/middleware"
	"github.com/mcoot/ultratic/internal/api/request"
	"github.com/mcoot/ultratic/internal/api/response"
	"github.com/mcoot/ultratic/internal/identity"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	lifecycle *lifecycle.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc *lifecycle.Service) *SessionHandler {
	return &SessionHandler{lifecycle: svc}
}

// SetUsername handles POST /api/v1/session.
// Accepts a JSON body or a form with a "username" field.
func (h *SessionHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	var req request.SetUsernameRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		req.Username = r.FormValue("username")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, NewInvalidRequestError("invalid request body"))
			return
		}
	}

	tok, err := h.lifecycle.Establish(r.Context(), middleware.MustGetSession(r.Context()), req.Username, identity.FromRequest(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SessionResponse{
		Success:     true,
		SessionData: response.SessionFromModel(tok),
	})
}

// Clear handles DELETE /api/v1/session
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.lifecycle.Clear(middleware.MustGetSession(r.Context()))
	response.JSON(w, http.StatusOK, response.SessionResponse{Success: true})
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tok, ok := h.lifecycle.Current(middleware.MustGetSession(r.Context()))
	if !ok {
		WriteError(w, apierr.NewNoSessionError())
		return
	}
	response.JSON(w, http.StatusOK, response.SessionResponse{
		Success:     true,
		SessionData: response.SessionFromModel(tok),
	})
}
