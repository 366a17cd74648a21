package model

import "time"

// MoveID uniquely identifies a move
type MoveID int64

// Move is a single placement within a game. Moves are append-only and are
// recorded as reported by the client, without rule checks.
type Move struct {
	ID         MoveID
	GameID     GameID
	UserID     UserID
	BoardIndex int
	BoxIndex   int
	Turn       int
	CreatedAt  time.Time
}
