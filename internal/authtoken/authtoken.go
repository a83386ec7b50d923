// Package authtoken mints and validates short-lived bearer tokens for
// the out-of-band admin channel (internal/oob), replacing the original
// rcon plaintext-password scheme with a typed, expiring credential.
package authtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims identifies the admin principal a token was minted for, plus
// the standard registered claims (issuer, expiry) jwt/v5 validates for
// us.
type Claims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// ErrExpired, ErrInvalid classify a failed Validate call for callers
// that want to log the two cases differently (expired vs. tampered).
var (
	ErrExpired = errors.New("authtoken: token expired")
	ErrInvalid = errors.New("authtoken: invalid token")
)

// Issuer mints and validates tokens signed with a single HMAC secret,
// one per running server process. Admin sessions are intentionally
// short-lived (spec §6.5's CLI-driven access model has no notion of a
// long-lived credential store).
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer returns an Issuer signing with secret and minting tokens
// valid for ttl.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// Mint issues a signed token for subject (the admin username).
func (i *Issuer) Mint(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "q2pro-ngd",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Subject: subject,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("authtoken: sign: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string, returning the subject it
// was minted for.
func (i *Issuer) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authtoken: unexpected signing method %v", t.Method)
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// HashPassword bcrypt-hashes an admin password for storage, replacing
// the original's plaintext rcon password comparison.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("authtoken: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash
// previously produced by HashPassword.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
