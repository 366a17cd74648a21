package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Game errors
	ErrGameNotFound       = errors.New("game not found")
	ErrGameAlreadyDecided = errors.New("game has already been decided")
	ErrGameOwnerMismatch  = errors.New("game does not belong to user")

	// Winner errors
	ErrInvalidWinner = errors.New("invalid winner")
)
