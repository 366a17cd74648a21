package response

import (
	"time"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
)

// Session is the client-visible session token
type Session struct {
	Username  string `json:"username"`
	IP        string `json:"ip"`
	SessionID int64  `json:"sessionId"`
	GameID    int64  `json:"gameId"`
}

// SessionFromModel converts a model.SessionToken
func SessionFromModel(t *model.SessionToken) *Session {
	if t == nil {
		return nil
	}
	return &Session{
		Username:  t.Username,
		IP:        t.IP,
		SessionID: int64(t.SessionID),
		GameID:    int64(t.GameID),
	}
}

// SessionResponse is returned by session endpoints
type SessionResponse struct {
	Success     bool     `json:"success"`
	SessionData *Session `json:"sessionData,omitempty"`
}

// OutcomeResponse is returned by write actions
type OutcomeResponse struct {
	Success     bool              `json:"success"`
	Outcome     lifecycle.Outcome `json:"outcome"`
	SessionData *Session          `json:"sessionData,omitempty"`
}

// Move represents a move in API responses
type Move struct {
	ID         int64     `json:"id"`
	BoardIndex int       `json:"boardIndex"`
	BoxIndex   int       `json:"boxIndex"`
	Turn       int       `json:"turn"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Game represents a game with its moves
type Game struct {
	ID        int64         `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	WonAt     *time.Time    `json:"wonAt"`
	Winner    *model.Winner `json:"winner"`
	Moves     []Move        `json:"moves"`
}

// GameFromView converts a lifecycle.GameView
func GameFromView(v *lifecycle.GameView) Game {
	moves := make([]Move, 0, len(v.Moves))
	for _, m := range v.Moves {
		moves = append(moves, Move{
			ID:         int64(m.ID),
			BoardIndex: m.BoardIndex,
			BoxIndex:   m.BoxIndex,
			Turn:       m.Turn,
			CreatedAt:  m.CreatedAt,
		})
	}
	return Game{
		ID:        int64(v.Game.ID),
		CreatedAt: v.Game.CreatedAt,
		WonAt:     v.Game.WonAt,
		Winner:    v.Game.Winner,
		Moves:     moves,
	}
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}
