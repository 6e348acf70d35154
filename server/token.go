package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenClaims struct {
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies HS256 bearer tokens whose subject is a user id.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *tokenIssuer) Issue(userID uuid.UUID) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("no token secret configured")
	}
	now := t.now().UTC()
	claims := &tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the user id carried by token, or an auth error.
func (t *tokenIssuer) Verify(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errAuth("no token provided")
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(tk *jwt.Token) (any, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, errAuth("invalid token")
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, errAuth("invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errAuth("invalid token")
	}
	return id, nil
}
