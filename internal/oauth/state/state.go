// Package state issues and validates the signed tokens carried through the
// OAuth "state" parameter. A token binds the authorize step to the callback
// for one user and expires after a short window.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a freshly generated state token stays valid.
const DefaultTTL = 10 * time.Minute

// Claims is the payload of a state token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Validator signs and verifies state tokens with an HS256 secret.
// It is safe for concurrent use.
type Validator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    logging.Logger
}

type Option func(*Validator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(v *Validator) { v.ttl = ttl }
}

func WithLogger(l logging.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// NewValidator returns common.ErrMissingStateSecret when secret is empty.
func NewValidator(secret string, opts ...Option) (*Validator, error) {
	if secret == "" {
		return nil, common.ErrMissingStateSecret
	}
	v := &Validator{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    logging.Nop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Generate issues a token for userID with iat=now and exp=now+TTL.
func (v *Validator) Generate(userID string) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign state token: %w", err)
	}
	return signed, nil
}

// Validate returns the user id bound to token.
//
// Errors wrap common.ErrStateToken: common.ErrStateTokenExpired once
// exp has passed, common.ErrStateTokenInvalid for everything else
// (bad signature, unexpected algorithm, missing claims, malformed input).
func (v *Validator) Validate(token string) (string, error) {
	ctx := context.Background()

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			v.log.Debug(ctx, "state token expired")
			return "", common.ErrStateTokenExpired
		}
		v.log.Warn(ctx, "state token rejected", "error", err)
		return "", common.ErrStateTokenInvalid
	}

	if claims.IssuedAt == nil {
		v.log.Warn(ctx, "state token rejected", "error", "missing iat")
		return "", common.ErrStateTokenInvalid
	}
	if claims.UserID == "" {
		v.log.Warn(ctx, "state token rejected", "error", "missing user_id")
		return "", common.ErrStateTokenInvalid
	}

	return claims.UserID, nil
}
