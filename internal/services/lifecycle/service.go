// Package lifecycle drives a session through establish, move, decide, new game
// and clear, keeping the client token and the ledger in step.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcoot/ultratic/internal/dependencies/clock"
	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
)

const tracerName = "github.com/mcoot/ultratic/internal/services/lifecycle"

// TokenStore is the per-request view of the client-held session token
type TokenStore interface {
	Get() (*model.SessionToken, bool)
	// Set writes the token and restarts its TTL
	Set(tok model.SessionToken) error
	Clear()
}

// Outcome tells the caller whether an operation touched any state
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means there was no session, so nothing was recorded
	OutcomeSkipped Outcome = "skipped"
)

// MoveInput is a placement as reported by the client. It is not checked
// against the rules of the game.
type MoveInput struct {
	BoardIndex int
	BoxIndex   int
	Turn       int
}

// GameView is a game together with its moves in order
type GameView struct {
	Game  *model.Game
	Moves []*model.Move
}

// Config holds configuration for the lifecycle service
type Config struct {
	MinUsernameLength int
	MaxUsernameLength int
}

// DefaultConfig returns default lifecycle configuration
func DefaultConfig() Config {
	return Config{
		MinUsernameLength: 2,
		MaxUsernameLength: 32,
	}
}

// Service handles session state transitions
type Service struct {
	ledger storage.Ledger
	clock  clock.Clock
	logger *slog.Logger
	tracer trace.Tracer
	cfg    Config
}

// New creates a new lifecycle service
func New(ledger storage.Ledger, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.MinUsernameLength == 0 {
		cfg.MinUsernameLength = DefaultConfig().MinUsernameLength
	}
	if cfg.MaxUsernameLength == 0 {
		cfg.MaxUsernameLength = DefaultConfig().MaxUsernameLength
	}
	return &Service{
		ledger: ledger,
		clock:  clk,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		cfg:    cfg,
	}
}

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, outcome Outcome, err error) {
	if outcome != "" {
		span.SetAttributes(attribute.String("ultratic.outcome", string(outcome)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func tokenAttrs(tok *model.SessionToken) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("ultratic.session_id", int64(tok.SessionID)),
		attribute.Int64("ultratic.game_id", int64(tok.GameID)),
	}
}

// Establish validates the username, creates a user and its first game in one
// ledger transaction and writes a fresh token.
func (s *Service) Establish(ctx context.Context, ts TokenStore, username, ip string) (tok *model.SessionToken, err error) {
	ctx, span := s.startSpan(ctx, "establish")
	defer func() { endSpan(span, "", err) }()

	username = strings.TrimSpace(username)
	if err := s.validateUsername(username); err != nil {
		return nil, err
	}

	user, game, err := s.ledger.CreateUserWithGame(ctx, username, ip, s.clock.Now())
	if err != nil {
		s.logger.Error("failed to create user",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, &PersistenceError{Op: "create user", Err: err}
	}

	tok = &model.SessionToken{
		Username:  user.Username,
		IP:        user.IPAddress,
		SessionID: user.ID,
		GameID:    game.ID,
	}
	if err := ts.Set(*tok); err != nil {
		s.logger.Error("failed to write session",
			slog.Int64("session_id", int64(user.ID)),
			slog.Int64("game_id", int64(game.ID)),
			slog.String("error", err.Error()),
		)
		return nil, &TokenWriteError{Op: "establish", Err: err}
	}
	span.SetAttributes(tokenAttrs(tok)...)

	s.logger.Info("session established",
		slog.Int64("session_id", int64(user.ID)),
		slog.Int64("game_id", int64(game.ID)),
		slog.String("ip", ip),
	)
	return tok, nil
}

func (s *Service) validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < s.cfg.MinUsernameLength {
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username must be at least %d characters long", s.cfg.MinUsernameLength),
		}
	}
	if n > s.cfg.MaxUsernameLength {
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username must be at most %d characters long", s.cfg.MaxUsernameLength),
		}
	}
	return nil
}

// RecordMove appends a move to the session's current game. Without a session
// it records nothing and reports OutcomeSkipped.
func (s *Service) RecordMove(ctx context.Context, ts TokenStore, in MoveInput) (outcome Outcome, err error) {
	ctx, span := s.startSpan(ctx, "record_move",
		attribute.Int("ultratic.board_index", in.BoardIndex),
		attribute.Int("ultratic.box_index", in.BoxIndex),
		attribute.Int("ultratic.turn", in.Turn),
	)
	defer func() { endSpan(span, outcome, err) }()

	tok, ok := ts.Get()
	if !ok {
		s.logger.Warn("missing session", slog.String("op", "record_move"))
		return OutcomeSkipped, nil
	}
	span.SetAttributes(tokenAttrs(tok)...)

	move := &model.Move{
		GameID:     tok.GameID,
		UserID:     tok.SessionID,
		BoardIndex: in.BoardIndex,
		BoxIndex:   in.BoxIndex,
		Turn:       in.Turn,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.ledger.AppendMove(ctx, move); err != nil {
		s.logger.Error("failed to create move record",
			slog.Int64("game_id", int64(tok.GameID)),
			slog.String("error", err.Error()),
		)
		return "", &PersistenceError{Op: "create move record", Err: err}
	}

	s.logger.Debug("move recorded",
		slog.Int64("move_id", int64(move.ID)),
		slog.Int64("game_id", int64(tok.GameID)),
	)
	return OutcomeApplied, nil
}

// RecordWinner decides the session's current game and refreshes the token.
// The token keeps pointing at the decided game until NewGame.
func (s *Service) RecordWinner(ctx context.Context, ts TokenStore, winner model.Winner) (outcome Outcome, err error) {
	ctx, span := s.startSpan(ctx, "record_winner", attribute.Int("ultratic.winner", int(winner)))
	defer func() { endSpan(span, outcome, err) }()

	if !winner.Valid() {
		return "", &ValidationError{
			Field:   "winner",
			Message: fmt.Sprintf("winner must be 0, 1 or 2, got %d", int(winner)),
		}
	}

	tok, ok := ts.Get()
	if !ok {
		s.logger.Warn("missing session", slog.String("op", "record_winner"))
		return OutcomeSkipped, nil
	}
	span.SetAttributes(tokenAttrs(tok)...)

	if _, err := s.ledger.DecideGame(ctx, tok.GameID, winner, s.clock.Now()); err != nil {
		s.logger.Error("failed to record winner",
			slog.Int64("game_id", int64(tok.GameID)),
			slog.String("error", err.Error()),
		)
		return "", &PersistenceError{Op: "record winner", Err: err}
	}
	if err := ts.Set(*tok); err != nil {
		s.logger.Error("failed to write session",
			slog.Int64("game_id", int64(tok.GameID)),
			slog.String("error", err.Error()),
		)
		return "", &TokenWriteError{Op: "record winner", Err: err}
	}

	s.logger.Info("game decided",
		slog.Int64("game_id", int64(tok.GameID)),
		slog.String("winner", winner.String()),
	)
	return OutcomeApplied, nil
}

// NewGame starts another game for the session and points the token at it
func (s *Service) NewGame(ctx context.Context, ts TokenStore) (tok *model.SessionToken, outcome Outcome, err error) {
	ctx, span := s.startSpan(ctx, "new_game")
	defer func() { endSpan(span, outcome, err) }()

	current, ok := ts.Get()
	if !ok {
		s.logger.Warn("missing session", slog.String("op", "new_game"))
		return nil, OutcomeSkipped, nil
	}

	game, err := s.ledger.CreateGame(ctx, current.SessionID, s.clock.Now())
	if err != nil {
		s.logger.Error("failed to create new game",
			slog.Int64("session_id", int64(current.SessionID)),
			slog.String("error", err.Error()),
		)
		return nil, "", &PersistenceError{Op: "create game", Err: err}
	}

	next := current.WithGame(game.ID)
	if err := ts.Set(next); err != nil {
		s.logger.Error("failed to write session",
			slog.Int64("game_id", int64(game.ID)),
			slog.String("error", err.Error()),
		)
		return nil, "", &TokenWriteError{Op: "new game", Err: err}
	}
	span.SetAttributes(tokenAttrs(&next)...)

	s.logger.Info("new game started",
		slog.Int64("session_id", int64(next.SessionID)),
		slog.Int64("game_id", int64(game.ID)),
		slog.Int64("previous_game_id", int64(current.GameID)),
	)
	return &next, OutcomeApplied, nil
}

// Clear drops the session token. The ledger is untouched.
func (s *Service) Clear(ts TokenStore) {
	if tok, ok := ts.Get(); ok {
		s.logger.Info("session cleared", slog.Int64("session_id", int64(tok.SessionID)))
	}
	ts.Clear()
}

// Current returns the live session token, if any
func (s *Service) Current(ts TokenStore) (*model.SessionToken, bool) {
	return ts.Get()
}

// CurrentGame loads the session's current game and its moves
func (s *Service) CurrentGame(ctx context.Context, ts TokenStore) (view *GameView, outcome Outcome, err error) {
	ctx, span := s.startSpan(ctx, "current_game")
	defer func() { endSpan(span, outcome, err) }()

	tok, ok := ts.Get()
	if !ok {
		return nil, OutcomeSkipped, nil
	}
	span.SetAttributes(tokenAttrs(tok)...)

	game, err := s.ledger.GetGame(ctx, tok.GameID)
	if err != nil {
		return nil, "", &PersistenceError{Op: "load game", Err: err}
	}
	moves, err := s.ledger.ListMoves(ctx, tok.GameID)
	if err != nil {
		return nil, "", &PersistenceError{Op: "load moves", Err: err}
	}
	return &GameView{Game: game, Moves: moves}, OutcomeApplied, nil
}
