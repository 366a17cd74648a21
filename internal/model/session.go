package model

// SessionToken is the client-held session state carried in the session cookie.
// GameID always names the most recently created game of the session.
type SessionToken struct {
	Username  string `json:"username"`
	IP        string `json:"ip"`
	SessionID UserID `json:"sessionId"`
	GameID    GameID `json:"gameId"`
}

// WithGame returns a copy of the token pointing at another game
func (t SessionToken) WithGame(id GameID) SessionToken {
	t.GameID = id
	return t
}
