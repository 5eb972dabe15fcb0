// Package auth holds the engine's view of the external authentication
// collaborator: a token provider handing out the current access/refresh pair
// and user id, plus a file-backed implementation and a helper to decide when
// the access token needs refreshing.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens is the credential set the sync engine works with. Zero-value fields
// mean the user has not signed in on this device.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

// HasCredentials reports whether any usable credential is present.
func (t Tokens) HasCredentials() bool {
	return t.AccessToken != "" || t.RefreshToken != ""
}

// Provider supplies and persists the current token set.
type Provider interface {
	// Tokens returns the stored token set; a zero value (not an error) when
	// the user never signed in.
	Tokens(ctx context.Context) (Tokens, error)

	// Save persists a token set, e.g. after a refresh.
	Save(ctx context.Context, t Tokens) error
}

// AccessTokenExpired inspects the access token's exp claim without verifying
// the signature (verification is the server's job; we only decide whether a
// refresh is worth attempting). Unparseable tokens count as expired.
func AccessTokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
