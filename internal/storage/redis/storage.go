package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
)

// Storage is a Redis-backed implementation of the ledger.
//
// Users and games are JSON documents, moves are a JSON list per game and
// a sorted set indexes games by creation time for the stats view.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Ledger = (*Storage)(nil)

// User operations

func (s *Storage) CreateUserWithGame(ctx context.Context, username, ip string, at time.Time) (*model.User, *model.Game, error) {
	userID, err := s.client.Incr(ctx, sequenceKey("user")).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("allocate user id: %w", err)
	}
	gameID, err := s.client.Incr(ctx, sequenceKey("game")).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("allocate game id: %w", err)
	}

	user := &model.User{
		ID:        model.UserID(userID),
		Username:  username,
		IPAddress: ip,
		CreatedAt: at,
	}
	game := &model.Game{
		ID:        model.GameID(gameID),
		UserID:    user.ID,
		CreatedAt: at,
	}

	userData, err := json.Marshal(user)
	if err != nil {
		return nil, nil, err
	}
	gameData, err := json.Marshal(game)
	if err != nil {
		return nil, nil, err
	}

	// MULTI/EXEC so both documents and the index entry land together
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(user.ID), userData, 0)
		pipe.Set(ctx, gameKey(game.ID), gameData, 0)
		pipe.ZAdd(ctx, gamesIndexKey(), redis.Z{Score: float64(at.UnixMilli()), Member: gameMember(game.ID)})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create user with game: %w", err)
	}
	return user, game, nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, userID model.UserID, at time.Time) (*model.Game, error) {
	exists, err := s.client.Exists(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrUserNotFound
	}

	gameID, err := s.client.Incr(ctx, sequenceKey("game")).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate game id: %w", err)
	}
	game := &model.Game{
		ID:        model.GameID(gameID),
		UserID:    userID,
		CreatedAt: at,
	}
	data, err := json.Marshal(game)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, gameKey(game.ID), data, 0)
		pipe.ZAdd(ctx, gamesIndexKey(), redis.Z{Score: float64(at.UnixMilli()), Member: gameMember(game.ID)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return game, nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return getGame(ctx, s.client, id)
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getGame(ctx context.Context, c getter, id model.GameID) (*model.Game, error) {
	data, err := c.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) DecideGame(ctx context.Context, id model.GameID, winner model.Winner, at time.Time) (*model.Game, error) {
	key := gameKey(id)
	var decided *model.Game

	// Optimistic lock on the game document: the write only commits if no
	// other client touched the key since it was read.
	txf := func(tx *redis.Tx) error {
		game, err := getGame(ctx, tx, id)
		if err != nil {
			return err
		}
		if game.Decided() {
			return model.ErrGameAlreadyDecided
		}
		game.WonAt = &at
		game.Winner = &winner

		data, err := json.Marshal(game)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		decided = game
		return nil
	}

	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return decided, nil
	}
	return nil, fmt.Errorf("decide game %d: %w", id, redis.TxFailedErr)
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, move *model.Move) error {
	game, err := s.GetGame(ctx, move.GameID)
	if err != nil {
		return err
	}
	if game.UserID != move.UserID {
		return model.ErrGameOwnerMismatch
	}

	moveID, err := s.client.Incr(ctx, sequenceKey("move")).Result()
	if err != nil {
		return fmt.Errorf("allocate move id: %w", err)
	}
	stored := *move
	stored.ID = model.MoveID(moveID)

	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, movesKey(move.GameID), data).Err(); err != nil {
		return fmt.Errorf("append move: %w", err)
	}
	move.ID = stored.ID
	return nil
}

func (s *Storage) ListMoves(ctx context.Context, gameID model.GameID) ([]*model.Move, error) {
	exists, err := s.client.Exists(ctx, gameKey(gameID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrGameNotFound
	}

	items, err := s.client.LRange(ctx, movesKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	moves := make([]*model.Move, 0, len(items))
	for _, item := range items {
		var move model.Move
		if err := json.Unmarshal([]byte(item), &move); err != nil {
			return nil, err
		}
		moves = append(moves, &move)
	}
	return moves, nil
}

// Stats operations

func (s *Storage) CountGames(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, gamesIndexKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Storage) ListGameStats(ctx context.Context, offset, limit int) ([]*model.GameStats, error) {
	if limit <= 0 {
		return []*model.GameStats{}, nil
	}

	// Equal scores are returned in reverse lexicographic member order,
	// which the padded members turn into descending ID order.
	members, err := s.client.ZRevRange(ctx, gamesIndexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*model.GameStats{}, nil
	}

	// Batch fetch game documents and move counts
	pipe := s.client.Pipeline()
	gameCmds := make([]*redis.StringCmd, len(members))
	countCmds := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad games index member %q: %w", member, err)
		}
		gameCmds[i] = pipe.Get(ctx, gameKey(model.GameID(id)))
		countCmds[i] = pipe.LLen(ctx, movesKey(model.GameID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	games := make([]*model.Game, len(members))
	userKeys := make([]string, len(members))
	for i, cmd := range gameCmds {
		var game model.Game
		if err := json.Unmarshal([]byte(cmd.Val()), &game); err != nil {
			return nil, err
		}
		games[i] = &game
		userKeys[i] = userKey(game.UserID)
	}

	userDocs, err := s.client.MGet(ctx, userKeys...).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]*model.GameStats, 0, len(games))
	for i, game := range games {
		var user model.User
		if doc, ok := userDocs[i].(string); ok {
			if err := json.Unmarshal([]byte(doc), &user); err != nil {
				return nil, err
			}
		}
		rows = append(rows, &model.GameStats{
			ID:        game.ID,
			Username:  user.Username,
			CreatedAt: game.CreatedAt,
			MoveCount: int(countCmds[i].Val()),
			WonAt:     game.WonAt,
			Winner:    game.Winner,
		})
	}
	return rows, nil
}
