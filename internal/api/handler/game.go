package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/api/middleware"
	"github.com/mcoot/ultratic/internal/api/request"
	"github.com/mcoot/ultratic/internal/api/response"
	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
)

// GameHandler handles move and game endpoints
type GameHandler struct {
	lifecycle *lifecycle.Service
}

// NewGameHandler creates a new game handler
func NewGameHandler(svc *lifecycle.Service) *GameHandler {
	return &GameHandler{lifecycle: svc}
}

// RecordMove handles POST /api/v1/moves
func (h *GameHandler) RecordMove(w http.ResponseWriter, r *http.Request) {
	var req request.RecordMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.BoardIndex == nil || req.BoxIndex == nil || req.Turn == nil {
		WriteError(w, NewInvalidRequestError("boardIndex, boxIndex and turn are required"))
		return
	}

	outcome, err := h.lifecycle.RecordMove(r.Context(), middleware.MustGetSession(r.Context()), lifecycle.MoveInput{
		BoardIndex: *req.BoardIndex,
		BoxIndex:   *req.BoxIndex,
		Turn:       *req.Turn,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OutcomeResponse{Success: true, Outcome: outcome})
}

// RecordWinner handles POST /api/v1/games/current/winner
func (h *GameHandler) RecordWinner(w http.ResponseWriter, r *http.Request) {
	var req request.RecordWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Winner == nil {
		WriteError(w, NewInvalidRequestError("winner is required"))
		return
	}

	outcome, err := h.lifecycle.RecordWinner(r.Context(), middleware.MustGetSession(r.Context()), model.Winner(*req.Winner))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OutcomeResponse{Success: true, Outcome: outcome})
}

// NewGame handles POST /api/v1/games
func (h *GameHandler) NewGame(w http.ResponseWriter, r *http.Request) {
	tok, outcome, err := h.lifecycle.NewGame(r.Context(), middleware.MustGetSession(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OutcomeResponse{
		Success:     true,
		Outcome:     outcome,
		SessionData: response.SessionFromModel(tok),
	})
}

// Current handles GET /api/v1/games/current
func (h *GameHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, outcome, err := h.lifecycle.CurrentGame(r.Context(), middleware.MustGetSession(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	if outcome == lifecycle.OutcomeSkipped {
		WriteError(w, apierr.NewNoSessionError())
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromView(view))
}
