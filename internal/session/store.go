// Package session keeps the session token in an HTTP cookie.
package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mcoot/ultratic/internal/dependencies/clock"
	"github.com/mcoot/ultratic/internal/model"
)

// Store reads and writes session cookies
type Store struct {
	cfg    Config
	codec  Codec
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a session store. With an empty secret a random key is
// generated, so sessions do not survive a restart.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if len(cfg.Secret) == 0 {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.Secret = secret
		logger.Warn("no session secret configured, using an ephemeral key")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultConfig().CookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	codec, err := NewCodec(cfg.Codec, cfg.Secret, cfg.CookieName)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:    cfg,
		codec:  codec,
		clock:  clk,
		logger: logger,
	}, nil
}

// CookieName returns the configured cookie name
func (s *Store) CookieName() string {
	return s.cfg.CookieName
}

// Read decodes the session cookie on r. Missing, altered and expired
// cookies all read as no session.
func (s *Store) Read(r *http.Request) (*model.SessionToken, bool) {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	tok, err := s.codec.Decode(c.Value, s.clock.Now())
	if err != nil {
		s.logger.Debug("discarding session cookie", slog.String("error", err.Error()))
		return nil, false
	}
	return &tok, true
}

// Write sets the session cookie with a fresh TTL
func (s *Store) Write(w http.ResponseWriter, tok model.SessionToken) error {
	expiresAt := s.clock.Now().Add(s.cfg.TTL)
	value, err := s.codec.Encode(tok, expiresAt)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(s.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Delete expires the session cookie. Safe to call without a session.
func (s *Store) Delete(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Bind ties the store to one request/response pair
func (s *Store) Bind(w http.ResponseWriter, r *http.Request) *Binding {
	return &Binding{store: s, w: w, r: r}
}

// Binding is the session of a single request. Writes made through it are
// visible to later reads in the same request.
type Binding struct {
	store *Store
	w     http.ResponseWriter
	r     *http.Request

	loaded  bool
	current *model.SessionToken
}

func (b *Binding) Get() (*model.SessionToken, bool) {
	if !b.loaded {
		b.current, _ = b.store.Read(b.r)
		b.loaded = true
	}
	if b.current == nil {
		return nil, false
	}
	tok := *b.current
	return &tok, true
}

func (b *Binding) Set(tok model.SessionToken) error {
	if err := b.store.Write(b.w, tok); err != nil {
		return err
	}
	b.current = &tok
	b.loaded = true
	return nil
}

func (b *Binding) Clear() {
	b.store.Delete(b.w)
	b.current = nil
	b.loaded = true
}
