// Package sqlstore is the SQL ledger backend. SQLite (modernc.org/sqlite) and
// Postgres (lib/pq) share the queries; only placeholders and DDL differ.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Second
)

// Store is a database/sql implementation of the ledger
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure Store implements the interface
var _ storage.Ledger = (*Store)(nil)

// OpenSQLite opens (creating if needed) and migrates a SQLite database file
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	return open(DialectSQLite, dsn)
}

// OpenPostgres connects to and migrates a Postgres database
func OpenPostgres(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	return open(DialectPostgres, dsn)
}

func open(d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", d, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d, err)
	}
	if err := applyMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, dialect: d}, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the pool for tests and maintenance tasks
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// inTx runs fn inside a transaction, rolling back on any error
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// User operations

func (s *Store) CreateUserWithGame(ctx context.Context, username, ip string, at time.Time) (*model.User, *model.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	user := &model.User{Username: username, IPAddress: ip, CreatedAt: at}
	game := &model.Game{CreatedAt: at}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			s.q(`INSERT INTO users (username, ip_address, created_at) VALUES (?, ?, ?) RETURNING id`),
			username, ip, at.UnixMilli(),
		).Scan(&user.ID)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		game.UserID = user.ID
		return s.insertGame(ctx, tx, game)
	})
	if err != nil {
		return nil, nil, err
	}
	return user, game, nil
}

func (s *Store) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	user := &model.User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, username, ip_address, created_at FROM users WHERE id = ?`), id,
	).Scan(&user.ID, &user.Username, &user.IPAddress, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

// Game operations

func (s *Store) CreateGame(ctx context.Context, userID model.UserID, at time.Time) (*model.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	game := &model.Game{UserID: userID, CreatedAt: at}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM users WHERE id = ?`), userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		return s.insertGame(ctx, tx, game)
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Store) insertGame(ctx context.Context, tx *sql.Tx, game *model.Game) error {
	err := tx.QueryRowContext(ctx,
		s.q(`INSERT INTO games (user_id, created_at) VALUES (?, ?) RETURNING id`),
		game.UserID, game.CreatedAt.UnixMilli(),
	).Scan(&game.ID)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *Store) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	game := &model.Game{}
	var createdAt int64
	var wonAt, winner sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, user_id, won_at, winner, created_at FROM games WHERE id = ?`), id,
	).Scan(&game.ID, &game.UserID, &wonAt, &winner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	game.CreatedAt = fromMillis(createdAt)
	game.WonAt, game.Winner = outcome(wonAt, winner)
	return game, nil
}

func (s *Store) DecideGame(ctx context.Context, id model.GameID, winner model.Winner, at time.Time) (*model.Game, error) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	// Conditional update: only an undecided game can take an outcome
	res, err := s.db.ExecContext(wctx,
		s.q(`UPDATE games SET won_at = ?, winner = ? WHERE id = ? AND won_at IS NULL`),
		at.UnixMilli(), int(winner), id,
	)
	if err != nil {
		return nil, fmt.Errorf("decide game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("decide game: %w", err)
	}

	game, err := s.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, model.ErrGameAlreadyDecided
	}
	return game, nil
}

// Move operations

func (s *Store) AppendMove(ctx context.Context, move *model.Move) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owner model.UserID
		err := tx.QueryRowContext(ctx, s.q(`SELECT user_id FROM games WHERE id = ?`), move.GameID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("check game: %w", err)
		}
		if owner != move.UserID {
			return model.ErrGameOwnerMismatch
		}

		err = tx.QueryRowContext(ctx,
			s.q(`INSERT INTO moves (game_id, user_id, board_index, box_index, turn, created_at)
			 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			move.GameID, move.UserID, move.BoardIndex, move.BoxIndex, move.Turn, move.CreatedAt.UnixMilli(),
		).Scan(&move.ID)
		if err != nil {
			return fmt.Errorf("insert move: %w", err)
		}
		return nil
	})
}

func (s *Store) ListMoves(ctx context.Context, gameID model.GameID) ([]*model.Move, error) {
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, game_id, user_id, board_index, box_index, turn, created_at
		 FROM moves WHERE game_id = ? ORDER BY id`), gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	moves := []*model.Move{}
	for rows.Next() {
		m := &model.Move{}
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.GameID, &m.UserID, &m.BoardIndex, &m.BoxIndex, &m.Turn, &createdAt); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.CreatedAt = fromMillis(createdAt)
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// Stats operations

func (s *Store) CountGames(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

func (s *Store) ListGameStats(ctx context.Context, offset, limit int) ([]*model.GameStats, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT g.id, u.username, g.created_at, g.won_at, g.winner,
		       (SELECT COUNT(*) FROM moves m WHERE m.game_id = g.id) AS move_count
		FROM games g
		JOIN users u ON u.id = g.user_id
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT ? OFFSET ?`), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list game stats: %w", err)
	}
	defer rows.Close()

	stats := []*model.GameStats{}
	for rows.Next() {
		row := &model.GameStats{}
		var createdAt int64
		var wonAt, winner sql.NullInt64
		if err := rows.Scan(&row.ID, &row.Username, &createdAt, &wonAt, &winner, &row.MoveCount); err != nil {
			return nil, fmt.Errorf("scan game stats: %w", err)
		}
		row.CreatedAt = fromMillis(createdAt)
		row.WonAt, row.Winner = outcome(wonAt, winner)
		stats = append(stats, row)
	}
	return stats, rows.Err()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func outcome(wonAt, winner sql.NullInt64) (*time.Time, *model.Winner) {
	if !wonAt.Valid || !winner.Valid {
		return nil, nil
	}
	t := fromMillis(wonAt.Int64)
	w := model.Winner(winner.Int64)
	return &t, &w
}
