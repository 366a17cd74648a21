package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ultratic/internal/api"
	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/api/handler"
	"github.com/mcoot/ultratic/internal/api/response"
	"github.com/mcoot/ultratic/internal/factory"
	"github.com/mcoot/ultratic/internal/model"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
	"github.com/mcoot/ultratic/internal/services/stats"
	"github.com/mcoot/ultratic/internal/storage"
	"github.com/mcoot/ultratic/internal/testutil"
)

// testServer serves the router over HTTP with a cookie-keeping client
type testServer struct {
	app    *factory.TestApp
	server *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithHealth(t, nil)
}

func newTestServerWithHealth(t *testing.T, health handler.Pinger) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	if health == nil {
		health = app.Ledger
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		Sessions:         app.Sessions,
		LifecycleService: app.LifecycleService,
		StatsService:     app.StatsService,
		Health:           health,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{
		app:    app,
		server: server,
		client: newClient(t),
	}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *http.Response {
	return ts.requestAs(t, ts.client, method, path, body, nil)
}

func (ts *testServer) requestAs(t *testing.T, client *http.Client, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) login(t *testing.T, name string) *response.Session {
	t.Helper()
	resp := ts.request(t, http.MethodPost, "/api/v1/session", map[string]string{"username": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[response.SessionResponse](t, resp)
	require.NotNil(t, body.SessionData)
	return body.SessionData
}

func move(board, box, turn int) map[string]int {
	return map[string]int{"boardIndex": board, "boxIndex": box, "turn": turn}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[response.HealthResponse](t, resp).Status)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheckLedgerDown(t *testing.T) {
	ts := newTestServerWithHealth(t, failingPinger{})

	resp := ts.request(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, apierr.CodeUnavailable, decode[apierr.APIError](t, resp).Code)
}

func TestEstablishSession(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.requestAs(t, ts.client, http.MethodPost, "/api/v1/session",
		map[string]string{"username": "alice"},
		map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[response.SessionResponse](t, resp)
	assert.True(t, body.Success)
	require.NotNil(t, body.SessionData)
	assert.Equal(t, "alice", body.SessionData.Username)
	assert.Equal(t, "203.0.113.7", body.SessionData.IP)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == ts.app.Sessions.CookieName() {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, sessionCookie.SameSite)
	assert.Equal(t, 3600, sessionCookie.MaxAge)

	// The cookie round-trips
	resp = ts.request(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[response.SessionResponse](t, resp)
	assert.Equal(t, body.SessionData, got.SessionData)
}

func TestEstablishSessionFromForm(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{"username": {"bob"}}
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/v1/session", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[response.SessionResponse](t, resp)
	assert.Equal(t, "bob", body.SessionData.Username)
	assert.Equal(t, "unknown", body.SessionData.IP)
}

func TestEstablishSessionValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"too short", map[string]string{"username": "a"}, http.StatusBadRequest},
		{"only spaces", map[string]string{"username": "    "}, http.StatusBadRequest},
		{"too long", map[string]string{"username": strings.Repeat("x", 33)}, http.StatusBadRequest},
		{"missing", map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp := ts.request(t, http.MethodPost, "/api/v1/session", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			apiErr := decode[apierr.APIError](t, resp)
			assert.Equal(t, apierr.CodeInvalidRequest, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)

			// No session is set on failure
			resp = ts.request(t, http.MethodGet, "/api/v1/session", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestEstablishSessionInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/api/v1/session", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionWithoutCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apierr.CodeNoSession, decode[apierr.APIError](t, resp).Code)
}

func TestTamperedCookieReadsAsNoSession(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	u, err := url.Parse(ts.server.URL)
	require.NoError(t, err)
	ts.client.Jar.SetCookies(u, []*http.Cookie{{Name: ts.app.Sessions.CookieName(), Value: "not-a-real-token", Path: "/"}})

	resp := ts.request(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecordMoveAndCurrentGame(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.login(t, "alice")

	for i, m := range []map[string]int{move(4, 4, 0), move(4, 0, 1), move(0, 3, 0)} {
		resp := ts.request(t, http.MethodPost, "/api/v1/moves", m)
		require.Equal(t, http.StatusOK, resp.StatusCode, "move %d", i)
		assert.Equal(t, lifecycle.OutcomeApplied, decode[response.OutcomeResponse](t, resp).Outcome)
	}

	resp := ts.request(t, http.MethodGet, "/api/v1/games/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	game := decode[response.Game](t, resp)
	assert.Equal(t, sess.GameID, game.ID)
	assert.Nil(t, game.Winner)
	require.Len(t, game.Moves, 3)
	assert.Equal(t, 4, game.Moves[0].BoardIndex)
	assert.Equal(t, 0, game.Moves[1].BoxIndex)
	assert.Equal(t, 0, game.Moves[2].Turn)
}

func TestRecordMoveRequiresAllFields(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	resp := ts.request(t, http.MethodPost, "/api/v1/moves", map[string]int{"boardIndex": 0, "boxIndex": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordMoveStoresValuesUnchecked(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.login(t, "alice")

	resp := ts.request(t, http.MethodPost, "/api/v1/moves", move(42, -1, 7))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	moves, err := ts.app.Ledger.ListMoves(context.Background(), model.GameID(sess.GameID))
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, 42, moves[0].BoardIndex)
	assert.Equal(t, -1, moves[0].BoxIndex)
	assert.Equal(t, 7, moves[0].Turn)
}

func TestActionsWithoutSessionAreSkipped(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPost, "/api/v1/moves", move(0, 0, 0))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, lifecycle.OutcomeSkipped, decode[response.OutcomeResponse](t, resp).Outcome)

	resp = ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, lifecycle.OutcomeSkipped, decode[response.OutcomeResponse](t, resp).Outcome)

	resp = ts.request(t, http.MethodPost, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[response.OutcomeResponse](t, resp)
	assert.Equal(t, lifecycle.OutcomeSkipped, body.Outcome)
	assert.Nil(t, body.SessionData)

	resp = ts.request(t, http.MethodGet, "/api/v1/games/current", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	count, err := ts.app.Ledger.CountGames(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordWinner(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.login(t, "alice")

	resp := ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, lifecycle.OutcomeApplied, decode[response.OutcomeResponse](t, resp).Outcome)

	game, err := ts.app.Ledger.GetGame(context.Background(), model.GameID(sess.GameID))
	require.NoError(t, err)
	require.NotNil(t, game.Winner)
	assert.Equal(t, model.WinnerCircle, *game.Winner)
	assert.Equal(t, ts.app.MockClock.Now(), *game.WonAt)
}

func TestRecordWinnerTwiceConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	resp := ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apierr.CodeGameDecided, decode[apierr.APIError](t, resp).Code)
}

func TestRecordWinnerValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	resp := ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewGameMovesSessionForward(t *testing.T) {
	ts := newTestServer(t)
	first := ts.login(t, "alice")
	ts.request(t, http.MethodPost, "/api/v1/moves", move(1, 1, 0))

	resp := ts.request(t, http.MethodPost, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[response.OutcomeResponse](t, resp)
	assert.Equal(t, lifecycle.OutcomeApplied, body.Outcome)
	require.NotNil(t, body.SessionData)
	assert.Equal(t, first.SessionID, body.SessionData.SessionID)
	assert.Greater(t, body.SessionData.GameID, first.GameID)

	// The cookie follows the new game
	resp = ts.request(t, http.MethodGet, "/api/v1/games/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	game := decode[response.Game](t, resp)
	assert.Equal(t, body.SessionData.GameID, game.ID)
	assert.Empty(t, game.Moves)
}

func TestClearSession(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	resp := ts.request(t, http.MethodDelete, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/v1/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Clearing twice is fine
	resp = ts.request(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.login(t, "alice")
	ts.request(t, http.MethodPost, "/api/v1/moves", move(0, 0, 0))
	ts.request(t, http.MethodPost, "/api/v1/moves", move(0, 1, 1))
	ts.request(t, http.MethodPost, "/api/v1/games/current/winner", map[string]int{"winner": 1})

	ts.app.MockClock.Advance(time.Minute)
	bobClient := newClient(t)
	resp := ts.requestAs(t, bobClient, http.MethodPost, "/api/v1/session", map[string]string{"username": "bob"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[stats.Page](t, resp)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Rows, 2)

	assert.Equal(t, "bob", page.Rows[0].Username)
	assert.Equal(t, 0, page.Rows[0].MoveCount)
	assert.Nil(t, page.Rows[0].Winner)

	assert.Equal(t, model.GameID(alice.GameID), page.Rows[1].ID)
	assert.Equal(t, 2, page.Rows[1].MoveCount)
	require.NotNil(t, page.Rows[1].Winner)
	assert.Equal(t, model.WinnerCross, *page.Rows[1].Winner)
}

func TestStatsWireFormat(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "alice")

	resp := ts.request(t, http.MethodGet, "/api/v1/stats?page=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Contains(t, raw, "rows")
	assert.Contains(t, raw, "currentPage")
	assert.Contains(t, raw, "totalPages")

	rows := raw["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	for _, key := range []string{"id", "username", "createdAt", "move_count", "wonAt", "winner"} {
		assert.Contains(t, row, key)
	}
}

func TestStatsPageParameter(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/stats?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Empty ledger still reports one page
	resp = ts.request(t, http.MethodGet, "/api/v1/stats?page=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[stats.Page](t, resp)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPages)
	assert.Empty(t, page.Rows)
}

// unreachableLedger fails every stats read
type unreachableLedger struct {
	storage.Ledger
}

func (unreachableLedger) CountGames(context.Context) (int, error) {
	return 0, errors.New("connection refused")
}

func TestStatsLedgerFailureCarriesDetails(t *testing.T) {
	app := factory.NewTestApp()
	router := api.NewRouter(api.RouterConfig{
		Logger:           testutil.NopLogger(),
		Sessions:         app.Sessions,
		LifecycleService: app.LifecycleService,
		StatsService:     stats.New(unreachableLedger{Ledger: app.Ledger}, 0),
		Health:           app.Ledger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	ts := &testServer{app: app, server: server, client: newClient(t)}

	resp := ts.request(t, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode[apierr.APIError](t, resp)
	assert.Equal(t, apierr.CodePersistenceError, body.Code)
	assert.Equal(t, "Failed to count games", body.Message)
	assert.Equal(t, "connection refused", body.Details)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apierr.CodeNotFound, decode[apierr.APIError](t, resp).Code)
}

func TestWrongMethod(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, http.MethodPut, "/api/v1/session", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, apierr.CodeMethodNotAllowed, decode[apierr.APIError](t, resp).Code)
}
