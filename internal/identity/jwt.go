// Package identity implements the player identity provider on signed JWTs.
// The subject claim is the stable player id used as the move, clock, and
// strike key throughout the engine.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret  = errors.New("identity: signing secret is empty")
	ErrMissingToken = errors.New("identity: token is empty")
	ErrNoSubject    = errors.New("identity: token has no subject")
)

// Provider issues and verifies HS256 player tokens.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// New builds a provider. ttl bounds issued token lifetime.
func New(secret string, issuer string, ttl time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// IssueToken mints a token proving playerID.
func (p *Provider) IssueToken(playerID string) (string, error) {
	if playerID == "" {
		return "", ErrNoSubject
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// PlayerID implements ports.IdentityPort: it verifies the token signature,
// expiry, and issuer, and returns the subject.
func (p *Provider) PlayerID(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("identity: parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
