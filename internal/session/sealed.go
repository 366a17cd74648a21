package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/mcoot/ultratic/internal/model"
)

const sealedKeyInfo = "ultratic session cookie v1"

// SealedCodec encrypts tokens with XChaCha20-Poly1305. The cookie name is
// bound in as associated data so a value cannot be replayed under another cookie.
//
// Wire format: base64url(nonce || ciphertext).
type SealedCodec struct {
	aead cipher.AEAD
	ad   []byte
}

type sealedEnvelope struct {
	Token     model.SessionToken `json:"tok"`
	ExpiresAt int64              `json:"exp"`
}

// NewSealedCodec derives the encryption key from secret with HKDF-SHA256
func NewSealedCodec(secret []byte, cookieName string) (*SealedCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("sealed codec requires a secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealedKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &SealedCodec{aead: aead, ad: []byte(cookieName)}, nil
}

func (c *SealedCodec) Encode(tok model.SessionToken, expiresAt time.Time) (string, error) {
	plain, err := json.Marshal(sealedEnvelope{Token: tok, ExpiresAt: expiresAt.UnixMilli()})
	if err != nil {
		return "", err
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plain, c.ad)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *SealedCodec) Decode(value string, now time.Time) (model.SessionToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return model.SessionToken{}, fmt.Errorf("%w: too short", ErrInvalidToken)
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, c.ad)
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var env sealedEnvelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return model.SessionToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if now.UnixMilli() >= env.ExpiresAt {
		return model.SessionToken{}, ErrExpiredToken
	}
	return env.Token, nil
}
