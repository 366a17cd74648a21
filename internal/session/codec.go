package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/ultratic/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// Codec turns a session token into a cookie value and back.
// Decode must reject values that were altered or whose expiry is not after now.
type Codec interface {
	Encode(tok model.SessionToken, expiresAt time.Time) (string, error)
	Decode(value string, now time.Time) (model.SessionToken, error)
}

// NewCodec builds the codec selected by kind
func NewCodec(kind CodecKind, secret []byte, cookieName string) (Codec, error) {
	switch kind {
	case CodecSealed, "":
		return NewSealedCodec(secret, cookieName)
	case CodecSigned:
		return NewSignedCodec(secret)
	default:
		return nil, fmt.Errorf("unknown session codec %q", kind)
	}
}
