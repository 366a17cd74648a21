// Package storagetest holds the behaviour every Ledger backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
	"github.com/stretchr/testify/suite"
)

// LedgerSuite runs the ledger contract against the backend built by NewLedger.
// NewLedger is called once per test and must return an empty ledger.
type LedgerSuite struct {
	suite.Suite
	NewLedger func(t *testing.T) storage.Ledger

	ledger storage.Ledger
	ctx    context.Context
	now    time.Time
}

func (s *LedgerSuite) SetupTest() {
	s.ledger = s.NewLedger(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *LedgerSuite) TearDownTest() {
	s.Require().NoError(s.ledger.Close())
}

func (s *LedgerSuite) establish(name string) (*model.User, *model.Game) {
	user, game, err := s.ledger.CreateUserWithGame(s.ctx, name, "203.0.113.7", s.now)
	s.Require().NoError(err)
	return user, game
}

// User tests

func (s *LedgerSuite) TestCreateUserWithGameSucceeds() {
	user, game := s.establish("alice")

	s.NotZero(user.ID)
	s.Equal("alice", user.Username)
	s.Equal("203.0.113.7", user.IPAddress)
	s.WithinDuration(s.now, user.CreatedAt, 0)

	s.NotZero(game.ID)
	s.Equal(user.ID, game.UserID)
	s.False(game.Decided())
	s.Nil(game.Winner)

	stored, err := s.ledger.GetUser(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("alice", stored.Username)

	storedGame, err := s.ledger.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(user.ID, storedGame.UserID)
}

func (s *LedgerSuite) TestSameUsernameCreatesDistinctUsers() {
	first, firstGame := s.establish("alice")
	second, secondGame := s.establish("alice")

	s.Greater(second.ID, first.ID)
	s.Greater(secondGame.ID, firstGame.ID)
}

func (s *LedgerSuite) TestGetUserNotFound() {
	_, err := s.ledger.GetUser(s.ctx, 9999)
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Game tests

func (s *LedgerSuite) TestCreateGameLinksToUser() {
	user, first := s.establish("bob")

	game, err := s.ledger.CreateGame(s.ctx, user.ID, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Greater(game.ID, first.ID)
	s.Equal(user.ID, game.UserID)
	s.WithinDuration(s.now.Add(time.Minute), game.CreatedAt, 0)
}

func (s *LedgerSuite) TestCreateGameFailsForUnknownUser() {
	_, err := s.ledger.CreateGame(s.ctx, 9999, s.now)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *LedgerSuite) TestGetGameNotFound() {
	_, err := s.ledger.GetGame(s.ctx, 9999)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *LedgerSuite) TestDecideGameSetsWinnerAndTime() {
	_, game := s.establish("alice")
	wonAt := s.now.Add(2 * time.Minute)

	decided, err := s.ledger.DecideGame(s.ctx, game.ID, model.WinnerCross, wonAt)
	s.Require().NoError(err)
	s.Require().NotNil(decided.WonAt)
	s.Require().NotNil(decided.Winner)
	s.WithinDuration(wonAt, *decided.WonAt, 0)
	s.Equal(model.WinnerCross, *decided.Winner)

	stored, err := s.ledger.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.True(stored.Decided())
	s.Equal(model.WinnerCross, *stored.Winner)
}

func (s *LedgerSuite) TestDecideGameRecordsDraw() {
	_, game := s.establish("alice")

	decided, err := s.ledger.DecideGame(s.ctx, game.ID, model.WinnerNone, s.now)
	s.Require().NoError(err)
	s.Require().NotNil(decided.Winner)
	s.Equal(model.WinnerNone, *decided.Winner)
}

func (s *LedgerSuite) TestDecideGameTwiceFails() {
	_, game := s.establish("alice")
	_, err := s.ledger.DecideGame(s.ctx, game.ID, model.WinnerCross, s.now)
	s.Require().NoError(err)

	_, err = s.ledger.DecideGame(s.ctx, game.ID, model.WinnerCircle, s.now.Add(time.Hour))
	s.ErrorIs(err, model.ErrGameAlreadyDecided)

	stored, err := s.ledger.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.WinnerCross, *stored.Winner)
	s.WithinDuration(s.now, *stored.WonAt, 0)
}

func (s *LedgerSuite) TestDecideGameFailsForUnknownGame() {
	_, err := s.ledger.DecideGame(s.ctx, 9999, model.WinnerCross, s.now)
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Move tests

func (s *LedgerSuite) TestAppendMoveAssignsIncreasingIDs() {
	user, game := s.establish("alice")

	first := &model.Move{GameID: game.ID, UserID: user.ID, BoardIndex: 4, BoxIndex: 4, Turn: 1, CreatedAt: s.now}
	second := &model.Move{GameID: game.ID, UserID: user.ID, BoardIndex: 4, BoxIndex: 0, Turn: 2, CreatedAt: s.now.Add(time.Second)}
	s.Require().NoError(s.ledger.AppendMove(s.ctx, first))
	s.Require().NoError(s.ledger.AppendMove(s.ctx, second))
	s.NotZero(first.ID)
	s.Greater(second.ID, first.ID)

	moves, err := s.ledger.ListMoves(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 2)
	s.Equal(first.ID, moves[0].ID)
	s.Equal(4, moves[0].BoardIndex)
	s.Equal(4, moves[0].BoxIndex)
	s.Equal(1, moves[0].Turn)
	s.Equal(second.ID, moves[1].ID)
	s.Equal(0, moves[1].BoxIndex)
}

func (s *LedgerSuite) TestAppendMoveStoresUncheckedValues() {
	user, game := s.establish("alice")

	move := &model.Move{GameID: game.ID, UserID: user.ID, BoardIndex: 42, BoxIndex: -1, Turn: 0, CreatedAt: s.now}
	s.Require().NoError(s.ledger.AppendMove(s.ctx, move))

	moves, err := s.ledger.ListMoves(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Equal(42, moves[0].BoardIndex)
	s.Equal(-1, moves[0].BoxIndex)
}

func (s *LedgerSuite) TestAppendMoveFailsForUnknownGame() {
	user, _ := s.establish("alice")
	err := s.ledger.AppendMove(s.ctx, &model.Move{GameID: 9999, UserID: user.ID, CreatedAt: s.now})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *LedgerSuite) TestAppendMoveFailsForOtherUsersGame() {
	_, aliceGame := s.establish("alice")
	bob, _ := s.establish("bob")

	err := s.ledger.AppendMove(s.ctx, &model.Move{GameID: aliceGame.ID, UserID: bob.ID, CreatedAt: s.now})
	s.ErrorIs(err, model.ErrGameOwnerMismatch)

	moves, err := s.ledger.ListMoves(s.ctx, aliceGame.ID)
	s.Require().NoError(err)
	s.Empty(moves)
}

func (s *LedgerSuite) TestListMovesUnknownGame() {
	_, err := s.ledger.ListMoves(s.ctx, 9999)
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Stats tests

func (s *LedgerSuite) TestCountGames() {
	count, err := s.ledger.CountGames(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, count)

	user, _ := s.establish("alice")
	_, err = s.ledger.CreateGame(s.ctx, user.ID, s.now)
	s.Require().NoError(err)
	s.establish("bob")

	count, err = s.ledger.CountGames(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *LedgerSuite) TestListGameStatsNewestFirst() {
	alice, aliceGame := s.establish("alice")
	for turn := 1; turn <= 2; turn++ {
		s.Require().NoError(s.ledger.AppendMove(s.ctx, &model.Move{
			GameID: aliceGame.ID, UserID: alice.ID, BoardIndex: 0, BoxIndex: turn, Turn: turn, CreatedAt: s.now,
		}))
	}
	_, err := s.ledger.DecideGame(s.ctx, aliceGame.ID, model.WinnerCross, s.now.Add(time.Minute))
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	_, bobGame := s.establish("bob")

	rows, err := s.ledger.ListGameStats(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	s.Equal(bobGame.ID, rows[0].ID)
	s.Equal("bob", rows[0].Username)
	s.Equal(0, rows[0].MoveCount)
	s.Nil(rows[0].WonAt)
	s.Nil(rows[0].Winner)

	s.Equal(aliceGame.ID, rows[1].ID)
	s.Equal("alice", rows[1].Username)
	s.Equal(2, rows[1].MoveCount)
	s.Require().NotNil(rows[1].Winner)
	s.Equal(model.WinnerCross, *rows[1].Winner)
	s.Require().NotNil(rows[1].WonAt)
	s.WithinDuration(s.now.Add(-time.Hour).Add(time.Minute), *rows[1].WonAt, 0)
}

func (s *LedgerSuite) TestListGameStatsBreaksTiesByID() {
	user, first := s.establish("alice")
	second, err := s.ledger.CreateGame(s.ctx, user.ID, s.now)
	s.Require().NoError(err)

	rows, err := s.ledger.ListGameStats(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(second.ID, rows[0].ID)
	s.Equal(first.ID, rows[1].ID)
}

func (s *LedgerSuite) TestListGameStatsPaginates() {
	var ids []model.GameID
	for i := 0; i < 5; i++ {
		_, game := s.establish("player")
		ids = append(ids, game.ID)
		s.now = s.now.Add(time.Second)
	}

	page, err := s.ledger.ListGameStats(s.ctx, 2, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[2], page[0].ID)
	s.Equal(ids[1], page[1].ID)

	tail, err := s.ledger.ListGameStats(s.ctx, 4, 2)
	s.Require().NoError(err)
	s.Require().Len(tail, 1)
	s.Equal(ids[0], tail[0].ID)

	empty, err := s.ledger.ListGameStats(s.ctx, 10, 2)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *LedgerSuite) TestPing() {
	s.NoError(s.ledger.Ping(s.ctx))
}
