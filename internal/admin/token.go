package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CapClaims is the JWT form of a Cap: jti carries the capability id, sub the bound object.
type CapClaims struct {
	jwt.RegisteredClaims
}

// TokenCodec signs capabilities for transport. A valid signature only proves the token was
// issued by this deployment; the registry still decides eligibility.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates an HS256 codec. ttl 0 issues tokens without expiry.
func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl, now: time.Now}
}

func (tc *TokenCodec) Encode(c Cap) (string, error) {
	now := tc.now()
	claims := CapClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       c.ID,
			Subject:  c.ForObject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if tc.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(tc.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tc.secret)
}

func (tc *TokenCodec) Decode(tokenStr string) (Cap, error) {
	if tokenStr == "" {
		return Cap{}, ErrMissingCap
	}
	token, err := jwt.ParseWithClaims(tokenStr, &CapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method")
		}
		return tc.secret, nil
	}, jwt.WithTimeFunc(tc.now))
	if err != nil {
		return Cap{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CapClaims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		return Cap{}, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return Cap{ID: claims.ID, ForObject: claims.Subject}, nil
}
