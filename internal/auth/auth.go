// Package auth signs and verifies HS256 tokens and hashes passwords.
//
// Every token carries a purpose claim. A token minted for one purpose (for
// example account activation) is rejected wherever another purpose is
// expected.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Purpose scopes a token to one use.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeActivation    Purpose = "activation"
	PurposeResetPassword Purpose = "reset_password"
	PurposeResetEmail    Purpose = "reset_email"
	PurposePartnerState  Purpose = "partner_state"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Claims is the payload of every token. Optional fields are set according
// to the purpose: Email for email changes, TIN for partner state.
type Claims struct {
	jwt.RegisteredClaims
	Purpose Purpose `json:"purpose"`
	Role    string  `json:"role,omitempty"`
	Email   string  `json:"email,omitempty"`
	TIN     string  `json:"tin,omitempty"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// Signer mints and parses tokens with a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer using secret as the HMAC key.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign stamps c with a fresh id, issue time and expiry ttl from now.
func (s *Signer) Sign(c Claims, ttl time.Duration) (string, time.Time, error) {
	if c.Purpose == "" {
		return "", time.Time{}, fmt.Errorf("sign: empty purpose")
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	c.ID = uuid.NewString()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Parse verifies raw and checks it was minted for want.
func (s *Signer) Parse(raw string, want Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != want {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
