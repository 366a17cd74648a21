package request

// SetUsernameRequest is the request body for establishing a session
type SetUsernameRequest struct {
	Username string `json:"username"`
}

// RecordMoveRequest is the request body for recording a move.
// Pointers distinguish a missing field from zero.
type RecordMoveRequest struct {
	BoardIndex *int `json:"boardIndex"`
	BoxIndex   *int `json:"boxIndex"`
	Turn       *int `json:"turn"`
}

// RecordWinnerRequest is the request body for deciding the current game.
// Winner is 0 (draw), 1 (cross) or 2 (circle).
type RecordWinnerRequest struct {
	Winner *int `json:"winner"`
}
