package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
)

// Storage is an in-memory implementation of the ledger
type Storage struct {
	mu sync.RWMutex

	users map[model.UserID]*model.User
	games map[model.GameID]*model.Game
	moves map[model.GameID][]*model.Move

	lastUserID model.UserID
	lastGameID model.GameID
	lastMoveID model.MoveID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users: make(map[model.UserID]*model.User),
		games: make(map[model.GameID]*model.Game),
		moves: make(map[model.GameID][]*model.Move),
	}
}

// Ensure Storage implements the interface
var _ storage.Ledger = (*Storage)(nil)

// User operations

func (s *Storage) CreateUserWithGame(ctx context.Context, username, ip string, at time.Time) (*model.User, *model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUserID++
	user := &model.User{
		ID:        s.lastUserID,
		Username:  username,
		IPAddress: ip,
		CreatedAt: at,
	}
	s.users[user.ID] = user

	game := s.newGameLocked(user.ID, at)
	return copyUser(user), copyGame(game), nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return copyUser(user), nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, userID model.UserID, at time.Time) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, model.ErrUserNotFound
	}
	return copyGame(s.newGameLocked(userID, at)), nil
}

func (s *Storage) newGameLocked(userID model.UserID, at time.Time) *model.Game {
	s.lastGameID++
	game := &model.Game{
		ID:        s.lastGameID,
		UserID:    userID,
		CreatedAt: at,
	}
	s.games[game.ID] = game
	return game
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return copyGame(game), nil
}

func (s *Storage) DecideGame(ctx context.Context, id model.GameID, winner model.Winner, at time.Time) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	if game.Decided() {
		return nil, model.ErrGameAlreadyDecided
	}
	game.WonAt = &at
	game.Winner = &winner
	return copyGame(game), nil
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, move *model.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[move.GameID]
	if !ok {
		return model.ErrGameNotFound
	}
	if game.UserID != move.UserID {
		return model.ErrGameOwnerMismatch
	}
	s.lastMoveID++
	move.ID = s.lastMoveID
	stored := *move
	s.moves[move.GameID] = append(s.moves[move.GameID], &stored)
	return nil
}

func (s *Storage) ListMoves(ctx context.Context, gameID model.GameID) ([]*model.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, model.ErrGameNotFound
	}
	moves := make([]*model.Move, 0, len(s.moves[gameID]))
	for _, m := range s.moves[gameID] {
		mv := *m
		moves = append(moves, &mv)
	}
	return moves, nil
}

// Stats operations

func (s *Storage) CountGames(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games), nil
}

func (s *Storage) ListGameStats(ctx context.Context, offset, limit int) ([]*model.GameStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	games := make([]*model.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].ID > games[j].ID
	})

	if offset >= len(games) {
		return []*model.GameStats{}, nil
	}
	end := min(offset+limit, len(games))

	rows := make([]*model.GameStats, 0, end-offset)
	for _, g := range games[offset:end] {
		g = copyGame(g)
		rows = append(rows, &model.GameStats{
			ID:        g.ID,
			Username:  s.users[g.UserID].Username,
			CreatedAt: g.CreatedAt,
			MoveCount: len(s.moves[g.ID]),
			WonAt:     g.WonAt,
			Winner:    g.Winner,
		})
	}
	return rows, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func copyGame(g *model.Game) *model.Game {
	c := *g
	if g.WonAt != nil {
		t := *g.WonAt
		c.WonAt = &t
	}
	if g.Winner != nil {
		w := *g.Winner
		c.Winner = &w
	}
	return &c
}
