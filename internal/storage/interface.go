package storage

import (
	"context"
	"time"

	"github.com/mcoot/ultratic/internal/model"
)

// Ledger is the durable record of users, games and moves.
// Implementations assign strictly increasing IDs in creation order and are safe
// for concurrent use.
type Ledger interface {
	// User operations

	// CreateUserWithGame creates a user and its first game atomically.
	// Either both records exist afterwards or neither does.
	CreateUserWithGame(ctx context.Context, username, ip string, at time.Time) (*model.User, *model.Game, error)
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)

	// Game operations
	CreateGame(ctx context.Context, userID model.UserID, at time.Time) (*model.Game, error)
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	// DecideGame sets WonAt and Winner together. It fails with
	// model.ErrGameAlreadyDecided if the game already has an outcome.
	DecideGame(ctx context.Context, id model.GameID, winner model.Winner, at time.Time) (*model.Game, error)

	// Move operations

	// AppendMove stores the move and assigns its ID. The game must exist and
	// belong to move.UserID.
	AppendMove(ctx context.Context, move *model.Move) error
	ListMoves(ctx context.Context, gameID model.GameID) ([]*model.Move, error)

	// Stats operations
	CountGames(ctx context.Context) (int, error)
	// ListGameStats returns games newest first (creation time, then ID, descending)
	ListGameStats(ctx context.Context, offset, limit int) ([]*model.GameStats, error)

	Ping(ctx context.Context) error
	Close() error
}
