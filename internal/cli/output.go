package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mcoot/ultratic/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintf(o.w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Session:
		o.printSession(v)
	case SessionResult:
		o.printSessionResult(v)
	case OutcomeResult:
		o.printOutcome(v)
	case Game:
		o.printGame(v)
	case StatsPage:
		o.printStats(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Session response type (matches API)
type Session struct {
	Username  string `json:"username"`
	IP        string `json:"ip"`
	SessionID int64  `json:"sessionId"`
	GameID    int64  `json:"gameId"`
}

// SessionResult wraps session endpoint responses
type SessionResult struct {
	Success     bool     `json:"success"`
	SessionData *Session `json:"sessionData,omitempty"`
}

// OutcomeResult is returned by write actions
type OutcomeResult struct {
	Success     bool     `json:"success"`
	Outcome     string   `json:"outcome"`
	SessionData *Session `json:"sessionData,omitempty"`
}

// Move response type
type Move struct {
	ID         int64     `json:"id"`
	BoardIndex int       `json:"boardIndex"`
	BoxIndex   int       `json:"boxIndex"`
	Turn       int       `json:"turn"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Game response type
type Game struct {
	ID        int64         `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	WonAt     *time.Time    `json:"wonAt"`
	Winner    *model.Winner `json:"winner"`
	Moves     []Move        `json:"moves"`
}

// StatsRow is one game in the stats listing
type StatsRow struct {
	ID        int64         `json:"id"`
	Username  string        `json:"username"`
	CreatedAt time.Time     `json:"createdAt"`
	MoveCount int           `json:"move_count"`
	WonAt     *time.Time    `json:"wonAt"`
	Winner    *model.Winner `json:"winner"`
}

// StatsPage response type
type StatsPage struct {
	Rows        []StatsRow `json:"rows"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printSession(s Session) {
	fmt.Fprintf(o.w, "User: %s (#%d)\n", s.Username, s.SessionID)
	fmt.Fprintf(o.w, "IP: %s\n", s.IP)
	fmt.Fprintf(o.w, "Game: #%d\n", s.GameID)
}

func (o *Output) printSessionResult(r SessionResult) {
	if r.SessionData == nil {
		fmt.Fprintln(o.w, "Session cleared")
		return
	}
	o.printSession(*r.SessionData)
}

func (o *Output) printOutcome(r OutcomeResult) {
	if r.Outcome == "skipped" {
		fmt.Fprintln(o.w, "No active session, nothing recorded")
		return
	}
	fmt.Fprintln(o.w, "Recorded")
	if r.SessionData != nil {
		fmt.Fprintf(o.w, "Game: #%d\n", r.SessionData.GameID)
	}
}

func (o *Output) printGame(g Game) {
	fmt.Fprintf(o.w, "Game: #%d\n", g.ID)
	fmt.Fprintf(o.w, "Started: %s\n", g.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(o.w, "Result: %s\n", result(g.Winner))

	fmt.Fprintf(o.w, "Moves (%d):\n", len(g.Moves))
	for i, m := range g.Moves {
		fmt.Fprintf(o.w, "  %2d. board %d box %d turn %d\n", i+1, m.BoardIndex, m.BoxIndex, m.Turn)
	}
}

func (o *Output) printStats(p StatsPage) {
	fmt.Fprintf(o.w, "Page %d of %d\n", p.CurrentPage, p.TotalPages)
	if len(p.Rows) == 0 {
		fmt.Fprintln(o.w, "No games yet")
		return
	}
	fmt.Fprintf(o.w, "%-6s %-20s %-20s %5s  %s\n", "GAME", "PLAYER", "STARTED", "MOVES", "RESULT")
	for _, r := range p.Rows {
		fmt.Fprintf(o.w, "%-6d %-20s %-20s %5d  %s\n",
			r.ID, r.Username, r.CreatedAt.Format("2006-01-02 15:04:05"), r.MoveCount, result(r.Winner))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func result(w *model.Winner) string {
	if w == nil {
		return "in progress"
	}
	if *w == model.WinnerNone {
		return "draw"
	}
	return w.String() + " won"
}
