package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/ultratic/internal/api/apierr"
	"github.com/mcoot/ultratic/internal/middleware"
)

// Recovery turns a panicking API handler into a JSON 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewRecoveredPanicError(middleware.RequestIDFrom(r.Context())))
	})
}
