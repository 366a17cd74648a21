package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GameID uniquely identifies a game. Assigned by the ledger in creation order.
type GameID int64

// Winner is the outcome of a decided game
type Winner int

const (
	WinnerNone   Winner = 0 // draw
	WinnerCross  Winner = 1
	WinnerCircle Winner = 2
)

// Valid reports whether w is one of the known outcomes
func (w Winner) Valid() bool {
	return w >= WinnerNone && w <= WinnerCircle
}

func (w Winner) String() string {
	switch w {
	case WinnerNone:
		return "none"
	case WinnerCross:
		return "cross"
	case WinnerCircle:
		return "circle"
	default:
		return fmt.Sprintf("winner(%d)", int(w))
	}
}

// ParseWinner accepts either the outcome name or its numeric code
func ParseWinner(s string) (Winner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "draw", "0":
		return WinnerNone, nil
	case "cross", "x", "1":
		return WinnerCross, nil
	case "circle", "o", "2":
		return WinnerCircle, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Winner(n), fmt.Errorf("%w: %d", ErrInvalidWinner, n)
	}
	return WinnerNone, fmt.Errorf("%w: %q", ErrInvalidWinner, s)
}

// Game is one round played by a user. WonAt and Winner are set together,
// exactly once, when the game is decided.
type Game struct {
	ID        GameID
	UserID    UserID
	WonAt     *time.Time
	Winner    *Winner
	CreatedAt time.Time
}

// Decided returns true once an outcome has been recorded
func (g *Game) Decided() bool {
	return g.WonAt != nil
}
