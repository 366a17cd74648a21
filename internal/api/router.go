package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/api/handler"
	apimiddleware "github.com/mcoot/ultratic/internal/api/middleware"
	"github.com/mcoot/ultratic/internal/middleware"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
	"github.com/mcoot/ultratic/internal/services/stats"
	"github.com/mcoot/ultratic/internal/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	Sessions         *session.Store
	LifecycleService *lifecycle.Service
	StatsService     *stats.Service
	Health           handler.Pinger
	// HSTS adds Strict-Transport-Security to responses
	HSTS bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.LifecycleService)
	gameHandler := handler.NewGameHandler(cfg.LifecycleService)
	statsHandler := handler.NewStatsHandler(cfg.StatsService)
	healthHandler := handler.NewHealthHandler(cfg.Health)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))
	api.Use(middleware.SecurityHeaders(cfg.HSTS))
	api.Use(apimiddleware.Session(cfg.Sessions))

	// Session routes
	api.HandleFunc("/session", sessionHandler.SetUsername).Methods(http.MethodPost)
	api.HandleFunc("/session", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/session", sessionHandler.Clear).Methods(http.MethodDelete)

	// Game routes
	api.HandleFunc("/moves", gameHandler.RecordMove).Methods(http.MethodPost)
	api.HandleFunc("/games", gameHandler.NewGame).Methods(http.MethodPost)
	api.HandleFunc("/games/current", gameHandler.Current).Methods(http.MethodGet)
	api.HandleFunc("/games/current/winner", gameHandler.RecordWinner).Methods(http.MethodPost)

	// Read-only routes
	api.HandleFunc("/stats", statsHandler.Fetch).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler.Check).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	handler.WriteError(w, apierr.NewNotFoundError())
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	handler.WriteError(w, apierr.NewMethodNotAllowedError())
}
