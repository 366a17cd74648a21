package session

import "time"

// CodecKind selects how the token is protected inside the cookie
type CodecKind string

const (
	// CodecSealed encrypts and authenticates the token. Clients cannot read it.
	CodecSealed CodecKind = "sealed"
	// CodecSigned is an HS256 JWT. Clients can read but not alter it.
	CodecSigned CodecKind = "signed"
)

// Config holds session cookie settings
type Config struct {
	CookieName string
	// TTL is both the cookie Max-Age and the expiry embedded in the value.
	// It restarts on every write.
	TTL time.Duration
	// Secure marks the cookie HTTPS-only. Enable in production.
	Secure bool
	Codec  CodecKind
	// Secret keys the codec. Empty means a random per-process key.
	Secret []byte
}

// DefaultConfig returns the default session settings
func DefaultConfig() Config {
	return Config{
		CookieName: "ultratic_session",
		TTL:        time.Hour,
		Secure:     false,
		Codec:      CodecSealed,
	}
}
