package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/ultratic/internal/model"
)

// SignedCodec carries the token as HS256 JWT claims
type SignedCodec struct {
	secret []byte
}

// exp is whole seconds, rounded up. Decode enforces ExpiresAtMs, the exact expiry.
type sessionClaims struct {
	model.SessionToken
	ExpiresAtMs int64 `json:"exp_ms"`
	jwt.RegisteredClaims
}

// NewSignedCodec creates a JWT codec keyed by secret
func NewSignedCodec(secret []byte) (*SignedCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("signed codec requires a secret")
	}
	return &SignedCodec{secret: secret}, nil
}

func (c *SignedCodec) Encode(tok model.SessionToken, expiresAt time.Time) (string, error) {
	exp := expiresAt.Truncate(time.Second)
	if exp.Before(expiresAt) {
		exp = exp.Add(time.Second)
	}
	claims := sessionClaims{
		SessionToken: tok,
		ExpiresAtMs:  expiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *SignedCodec) Decode(value string, now time.Time) (model.SessionToken, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return model.SessionToken{}, ErrExpiredToken
	}
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAtMs == 0 {
		return model.SessionToken{}, fmt.Errorf("%w: missing exp_ms", ErrInvalidToken)
	}
	if now.UnixMilli() >= claims.ExpiresAtMs {
		return model.SessionToken{}, ErrExpiredToken
	}
	return claims.SessionToken, nil
}
