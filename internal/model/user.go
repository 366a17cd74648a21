package model

import "time"

// UserID uniquely identifies a user. Assigned by the ledger in creation order.
type UserID int64

// User is an anonymous player identity created when a username is set.
// Two users may share a username.
type User struct {
	ID        UserID
	Username  string
	IPAddress string
	CreatedAt time.Time
}
