// Package auth supplies bearer tokens for the activity store and renews them
// with the OAuth2 refresh-token grant.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrNoAccessToken  = errors.New("no access token")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrRefreshFailed  = errors.New("token refresh failed")
)

// TokenInfo is an OAuth2 token response as kept by the client.
type TokenInfo struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"` // seconds
	RefreshToken string `json:"refreshToken,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"idToken,omitempty"`
	IssuedAt     int64  `json:"issuedAt,omitempty"` // unix seconds
}

// ExpiresAt returns when the access token expires. The exp claim of a JWT
// access token wins over IssuedAt+ExpiresIn. The zero time means unknown.
//
// The signature is not verified: the token is opaque to the client and only
// the authorization server and the activity store can validate it.
func (t TokenInfo) ExpiresAt() time.Time {
	if t.AccessToken != "" {
		claims := &jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err == nil && claims.ExpiresAt != nil {
			return claims.ExpiresAt.Time
		}
	}
	if t.IssuedAt > 0 && t.ExpiresIn > 0 {
		return time.Unix(t.IssuedAt+t.ExpiresIn, 0)
	}
	return time.Time{}
}

// ExpiresWithin reports whether the access token is known to expire
// before now+d.
func (t TokenInfo) ExpiresWithin(now time.Time, d time.Duration) bool {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !exp.After(now.Add(d))
}

// Source supplies access tokens.
type Source interface {
	// Token returns a usable access token.
	Token(ctx context.Context) (string, error)

	// Refresh forces a new access token, e.g. after a 401.
	Refresh(ctx context.Context) error
}

// StaticSource always returns the same access token and cannot refresh.
type StaticSource struct {
	AccessToken string
}

// Token returns the fixed access token.
func (s StaticSource) Token(_ context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return s.AccessToken, nil
}

// Refresh always fails with ErrNoRefreshToken.
func (s StaticSource) Refresh(_ context.Context) error {
	return ErrNoRefreshToken
}

var _ Source = StaticSource{}
