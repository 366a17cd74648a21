package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/ultratic/internal/session"
)

type contextKey string

const bindingContextKey contextKey = "session_binding"

// Session binds the session store to each request. Handlers reach the
// binding through GetSession.
func Session(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := store.Bind(w, r)
			ctx := context.WithValue(r.Context(), bindingContextKey, b)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the request's session binding
func GetSession(ctx context.Context) *session.Binding {
	b, _ := ctx.Value(bindingContextKey).(*session.Binding)
	return b
}

// MustGetSession returns the request's session binding or panics
func MustGetSession(ctx context.Context) *session.Binding {
	b := GetSession(ctx)
	if b == nil {
		panic("no session binding in context - session middleware not applied?")
	}
	return b
}
