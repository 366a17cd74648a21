// Package stats serves the paginated, read-only view over all games.
package stats

import (
	"context"
	"fmt"

	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/storage"
)

// DefaultPageSize is the number of rows per page
const DefaultPageSize = 10

// Page is one page of game statistics, newest game first
type Page struct {
	Rows        []*model.GameStats `json:"rows"`
	CurrentPage int                `json:"currentPage"`
	TotalPages  int                `json:"totalPages"`
	PageSize    int                `json:"pageSize"`
	TotalGames  int                `json:"totalGames"`
}

// LedgerError wraps a ledger failure hit while building a page
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Service aggregates game statistics
type Service struct {
	ledger   storage.Ledger
	pageSize int
}

// New creates a stats service. A non-positive page size uses DefaultPageSize.
func New(ledger storage.Ledger, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{ledger: ledger, pageSize: pageSize}
}

// FetchPage returns the requested 1-based page. Pages outside
// [1, TotalPages] are clamped; TotalPages is at least 1 even with no games.
func (s *Service) FetchPage(ctx context.Context, page int) (*Page, error) {
	total, err := s.ledger.CountGames(ctx)
	if err != nil {
		return nil, &LedgerError{Op: "count games", Err: err}
	}

	totalPages := max(1, (total+s.pageSize-1)/s.pageSize)
	page = min(max(page, 1), totalPages)

	rows, err := s.ledger.ListGameStats(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return nil, &LedgerError{Op: "list game stats", Err: err}
	}

	return &Page{
		Rows:        rows,
		CurrentPage: page,
		TotalPages:  totalPages,
		PageSize:    s.pageSize,
		TotalGames:  total,
	}, nil
}
