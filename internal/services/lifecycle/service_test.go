package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ultratic/internal/dependencies/mocks"
	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
	"github.com/mcoot/ultratic/internal/storage/memory"
	"github.com/mcoot/ultratic/internal/testutil"
)

// tokenStore is an in-memory TokenStore that counts writes
type tokenStore struct {
	tok     *model.SessionToken
	sets    int
	clears  int
	failSet error
}

func (t *tokenStore) Get() (*model.SessionToken, bool) {
	if t.tok == nil {
		return nil, false
	}
	c := *t.tok
	return &c, true
}

func (t *tokenStore) Set(tok model.SessionToken) error {
	if t.failSet != nil {
		return t.failSet
	}
	t.tok = &tok
	t.sets++
	return nil
}

func (t *tokenStore) Clear() {
	t.tok = nil
	t.clears++
}

// ledger wraps the memory store, counting writes and optionally failing them
type ledger struct {
	*memory.Storage
	writes int
	fail   error
}

func (l *ledger) CreateUserWithGame(ctx context.Context, username, ip string, at time.Time) (*model.User, *model.Game, error) {
	l.writes++
	if l.fail != nil {
		return nil, nil, l.fail
	}
	return l.Storage.CreateUserWithGame(ctx, username, ip, at)
}

func (l *ledger) CreateGame(ctx context.Context, userID model.UserID, at time.Time) (*model.Game, error) {
	l.writes++
	if l.fail != nil {
		return nil, l.fail
	}
	return l.Storage.CreateGame(ctx, userID, at)
}

func (l *ledger) DecideGame(ctx context.Context, id model.GameID, w model.Winner, at time.Time) (*model.Game, error) {
	l.writes++
	if l.fail != nil {
		return nil, l.fail
	}
	return l.Storage.DecideGame(ctx, id, w, at)
}

func (l *ledger) AppendMove(ctx context.Context, move *model.Move) error {
	l.writes++
	if l.fail != nil {
		return l.fail
	}
	return l.Storage.AppendMove(ctx, move)
}

var _ storage.Ledger = (*ledger)(nil)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	ledger  *ledger
	tokens  *tokenStore
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ledger = &ledger{Storage: memory.New()}
	s.tokens = &tokenStore{}
	s.service = New(s.ledger, s.clock, testutil.NopLogger(), DefaultConfig())
	s.ctx = context.Background()
}

func (s *ServiceSuite) establish(name string) *model.SessionToken {
	tok, err := s.service.Establish(s.ctx, s.tokens, name, "203.0.113.7")
	s.Require().NoError(err)
	return tok
}

func (s *ServiceSuite) move(board, box, turn int) {
	outcome, err := s.service.RecordMove(s.ctx, s.tokens, MoveInput{BoardIndex: board, BoxIndex: box, Turn: turn})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeApplied, outcome)
}

// Establish tests

func (s *ServiceSuite) TestEstablishSucceeds() {
	tok := s.establish("alice")

	s.Equal("alice", tok.Username)
	s.Equal("203.0.113.7", tok.IP)
	s.NotZero(tok.SessionID)
	s.NotZero(tok.GameID)
	s.Equal(1, s.tokens.sets)

	stored, ok := s.tokens.Get()
	s.Require().True(ok)
	s.Equal(*tok, *stored)

	game, err := s.ledger.GetGame(s.ctx, tok.GameID)
	s.Require().NoError(err)
	s.Equal(tok.SessionID, game.UserID)
	s.False(game.Decided())
}

func (s *ServiceSuite) TestEstablishTrimsUsername() {
	tok := s.establish("  al  ")
	s.Equal("al", tok.Username)
}

func (s *ServiceSuite) TestEstablishSameNameCreatesDistinctUsers() {
	first := s.establish("alice")
	second := s.establish("alice")

	s.NotEqual(first.SessionID, second.SessionID)
	s.NotEqual(first.GameID, second.GameID)
}

func (s *ServiceSuite) TestEstablishFailsForShortUsername() {
	for _, name := range []string{"", "a", " a ", "é"} {
		_, err := s.service.Establish(s.ctx, s.tokens, name, "unknown")

		var verr *ValidationError
		s.Require().ErrorAs(err, &verr, name)
		s.Equal("username", verr.Field)
		s.Equal("Username must be at least 2 characters long", verr.Message)
	}
	s.Zero(s.ledger.writes)
	s.Zero(s.tokens.sets)
}

func (s *ServiceSuite) TestEstablishCountsRunesNotBytes() {
	tok := s.establish("éé")
	s.Equal("éé", tok.Username)
}

func (s *ServiceSuite) TestEstablishFailsForLongUsername() {
	_, err := s.service.Establish(s.ctx, s.tokens, strings.Repeat("x", 33), "unknown")

	var verr *ValidationError
	s.ErrorAs(err, &verr)
	s.Zero(s.ledger.writes)
}

func (s *ServiceSuite) TestEstablishFailsOnLedgerError() {
	s.ledger.fail = errors.New("disk full")

	_, err := s.service.Establish(s.ctx, s.tokens, "alice", "unknown")

	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	s.Equal("create user", perr.Op)
	s.EqualError(perr.Err, "disk full")
	s.Zero(s.tokens.sets)
}

func (s *ServiceSuite) TestEstablishTokenWriteFailureLeavesRecords() {
	s.tokens.failSet = errors.New("seal failed")

	_, err := s.service.Establish(s.ctx, s.tokens, "alice", "unknown")

	var terr *TokenWriteError
	s.Require().ErrorAs(err, &terr)
	s.Equal("establish", terr.Op)
	s.EqualError(terr.Err, "seal failed")

	_, ok := s.tokens.Get()
	s.False(ok)
	count, err := s.ledger.CountGames(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

// RecordMove tests

func (s *ServiceSuite) TestRecordMoveAppendsToCurrentGame() {
	tok := s.establish("alice")
	s.clock.Advance(time.Second)
	s.move(4, 4, 1)

	moves, err := s.ledger.ListMoves(s.ctx, tok.GameID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Equal(tok.SessionID, moves[0].UserID)
	s.Equal(4, moves[0].BoardIndex)
	s.Equal(4, moves[0].BoxIndex)
	s.Equal(1, moves[0].Turn)
	s.Equal(s.clock.Now(), moves[0].CreatedAt)
}

func (s *ServiceSuite) TestRecordMoveDoesNotRewriteToken() {
	s.establish("alice")
	s.move(0, 0, 1)
	s.Equal(1, s.tokens.sets)
}

func (s *ServiceSuite) TestRecordMoveWithoutSessionIsSkipped() {
	outcome, err := s.service.RecordMove(s.ctx, s.tokens, MoveInput{BoardIndex: 1, BoxIndex: 2, Turn: 3})

	s.NoError(err)
	s.Equal(OutcomeSkipped, outcome)
	s.Zero(s.ledger.writes)
}

func (s *ServiceSuite) TestMissingSessionLogsWarning() {
	logger, logs := testutil.CaptureLogger()
	s.service = New(s.ledger, s.clock, logger, DefaultConfig())

	_, err := s.service.RecordMove(s.ctx, s.tokens, MoveInput{})
	s.Require().NoError(err)
	_, err = s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCross)
	s.Require().NoError(err)

	s.Equal([]string{"missing session", "missing session"}, logs.Messages(slog.LevelWarn))
	s.Empty(logs.Messages(slog.LevelError))
}

func (s *ServiceSuite) TestRecordMoveFailsOnLedgerError() {
	s.establish("alice")
	s.ledger.fail = errors.New("connection reset")

	_, err := s.service.RecordMove(s.ctx, s.tokens, MoveInput{})

	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	s.Equal("create move record", perr.Op)
}

// RecordWinner tests

func (s *ServiceSuite) TestRecordWinnerDecidesGameAndKeepsGameID() {
	tok := s.establish("alice")
	s.clock.Advance(time.Minute)

	outcome, err := s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCross)
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)

	game, err := s.ledger.GetGame(s.ctx, tok.GameID)
	s.Require().NoError(err)
	s.Require().True(game.Decided())
	s.Equal(model.WinnerCross, *game.Winner)
	s.Equal(s.clock.Now(), *game.WonAt)

	after, ok := s.tokens.Get()
	s.Require().True(ok)
	s.Equal(tok.GameID, after.GameID)
	s.Equal(2, s.tokens.sets)
}

func (s *ServiceSuite) TestRecordWinnerAcceptsDraw() {
	s.establish("alice")
	outcome, err := s.service.RecordWinner(s.ctx, s.tokens, model.WinnerNone)
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
}

func (s *ServiceSuite) TestRecordWinnerFailsForInvalidWinner() {
	s.establish("alice")
	writes := s.ledger.writes

	_, err := s.service.RecordWinner(s.ctx, s.tokens, model.Winner(3))

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("winner", verr.Field)
	s.Equal(writes, s.ledger.writes)
}

func (s *ServiceSuite) TestRecordWinnerTwiceFails() {
	s.establish("alice")
	_, err := s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCross)
	s.Require().NoError(err)

	_, err = s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCircle)
	s.ErrorIs(err, model.ErrGameAlreadyDecided)
}

func (s *ServiceSuite) TestRecordWinnerWithoutSessionIsSkipped() {
	outcome, err := s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCircle)
	s.NoError(err)
	s.Equal(OutcomeSkipped, outcome)
	s.Zero(s.ledger.writes)
}

// NewGame tests

func (s *ServiceSuite) TestNewGameRotatesGameID() {
	first := s.establish("bob")

	next, outcome, err := s.service.NewGame(s.ctx, s.tokens)
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
	s.NotEqual(first.GameID, next.GameID)
	s.Equal(first.SessionID, next.SessionID)
	s.Equal(first.Username, next.Username)
	s.Equal(first.IP, next.IP)

	game, err := s.ledger.GetGame(s.ctx, next.GameID)
	s.Require().NoError(err)
	s.Equal(first.SessionID, game.UserID)

	stored, _ := s.tokens.Get()
	s.Equal(next.GameID, stored.GameID)
}

func (s *ServiceSuite) TestNewGameThenMoveLinksToNewGame() {
	first := s.establish("bob")
	next, _, err := s.service.NewGame(s.ctx, s.tokens)
	s.Require().NoError(err)

	s.move(0, 0, 1)

	moves, err := s.ledger.ListMoves(s.ctx, next.GameID)
	s.Require().NoError(err)
	s.Len(moves, 1)

	moves, err = s.ledger.ListMoves(s.ctx, first.GameID)
	s.Require().NoError(err)
	s.Empty(moves)
}

func (s *ServiceSuite) TestNewGameWithoutSessionIsSkipped() {
	tok, outcome, err := s.service.NewGame(s.ctx, s.tokens)
	s.NoError(err)
	s.Nil(tok)
	s.Equal(OutcomeSkipped, outcome)
	s.Zero(s.ledger.writes)
}

func (s *ServiceSuite) TestNewGameFailsOnLedgerError() {
	first := s.establish("bob")
	s.ledger.fail = errors.New("boom")

	_, _, err := s.service.NewGame(s.ctx, s.tokens)

	var perr *PersistenceError
	s.Require().ErrorAs(err, &perr)
	stored, _ := s.tokens.Get()
	s.Equal(first.GameID, stored.GameID)
}

func (s *ServiceSuite) TestNewGameTokenWriteFailureKeepsOldToken() {
	first := s.establish("bob")
	s.tokens.failSet = errors.New("seal failed")

	_, _, err := s.service.NewGame(s.ctx, s.tokens)

	var terr *TokenWriteError
	s.Require().ErrorAs(err, &terr)
	s.Equal("new game", terr.Op)
	stored, _ := s.tokens.Get()
	s.Equal(first.GameID, stored.GameID)
}

// Clear tests

func (s *ServiceSuite) TestClearThenMoveIsNoOp() {
	s.establish("alice")
	writes := s.ledger.writes

	s.service.Clear(s.tokens)
	outcome, err := s.service.RecordMove(s.ctx, s.tokens, MoveInput{})

	s.NoError(err)
	s.Equal(OutcomeSkipped, outcome)
	s.Equal(writes, s.ledger.writes)
}

func (s *ServiceSuite) TestClearIsIdempotent() {
	s.service.Clear(s.tokens)
	s.service.Clear(s.tokens)

	_, ok := s.service.Current(s.tokens)
	s.False(ok)
	s.Equal(2, s.tokens.clears)
}

// CurrentGame tests

func (s *ServiceSuite) TestCurrentGameIncludesMoves() {
	tok := s.establish("alice")
	s.move(4, 4, 1)
	s.move(4, 0, 2)

	view, outcome, err := s.service.CurrentGame(s.ctx, s.tokens)
	s.Require().NoError(err)
	s.Equal(OutcomeApplied, outcome)
	s.Equal(tok.GameID, view.Game.ID)
	s.Len(view.Moves, 2)
}

func (s *ServiceSuite) TestCurrentGameWithoutSessionIsSkipped() {
	view, outcome, err := s.service.CurrentGame(s.ctx, s.tokens)
	s.NoError(err)
	s.Nil(view)
	s.Equal(OutcomeSkipped, outcome)
}

// Scenario tests

func (s *ServiceSuite) TestFullSessionWalkthrough() {
	alice := s.establish("alice")
	s.move(4, 4, 1)
	s.move(4, 0, 2)
	_, err := s.service.RecordWinner(s.ctx, s.tokens, model.WinnerCross)
	s.Require().NoError(err)

	rows, err := s.ledger.ListGameStats(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(alice.GameID, rows[0].ID)
	s.Equal("alice", rows[0].Username)
	s.Equal(2, rows[0].MoveCount)
	s.Equal(model.WinnerCross, *rows[0].Winner)
	s.NotNil(rows[0].WonAt)
}
