package model

import "time"

// GameStats is one row of the aggregate statistics view
type GameStats struct {
	ID        GameID     `json:"id"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"createdAt"`
	MoveCount int        `json:"move_count"`
	WonAt     *time.Time `json:"wonAt"`
	Winner    *Winner    `json:"winner"`
}
