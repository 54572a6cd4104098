// Package token mints and verifies the signed bearer credentials handed to
// clients: long-lived session tokens and short-lived activation and
// password-reset tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// Purpose names the code path a token was minted for.
type Purpose string

const (
	PurposeSession    Purpose = "session"
	PurposeActivation Purpose = "activation"
	PurposeReset      Purpose = "reset"
)

const DefaultIssuer = "pitchfork-auth"

var (
	// ErrRejected is returned by Decode for any token that must not be trusted.
	ErrRejected = errors.New("token rejected")

	errEmptySecret = errors.New("token signing secret is empty")
)

// Claims is the signed payload.
type Claims struct {
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret []byte
	issuer string
	// StrictPurpose makes Decode reject tokens minted for another purpose.
	// With it off the purpose claim is written but ignored on decode.
	strict bool
	now    func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for both minting and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// WithStrictPurpose toggles purpose enforcement (on by default).
func WithStrictPurpose(strict bool) Option {
	return func(c *Codec) { c.strict = strict }
}

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	c := &Codec{secret: []byte(secret), issuer: DefaultIssuer, strict: true, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Encode returns a compact signed token asserting subjectID until now+ttl.
func (c *Codec) Encode(subjectID string, purpose Purpose, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", errors.New("token subject is empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := c.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        utilities.NewKSUID(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature, issuer, expiry and purpose and returns the
// subject. Every failure wraps ErrRejected.
func (c *Codec) Decode(raw string, purpose Purpose) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty token", ErrRejected)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRejected, err)
	}
	if !tok.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrRejected)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrRejected)
	}
	if c.strict && claims.Purpose != purpose {
		return "", fmt.Errorf("%w: minted for %q, want %q", ErrRejected, claims.Purpose, purpose)
	}
	return claims.Subject, nil
}
