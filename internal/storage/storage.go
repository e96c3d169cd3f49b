package storage

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned when no token exists under a key
var ErrTokenNotFound = errors.New("token not found")

// DefaultTokenKey is the key the coordinator stores its access token under,
// matching the key the mobile clients use in their secure store.
const DefaultTokenKey = "uaepass_token"

// StoredToken is an access token mirrored to durable storage after a
// successful exchange. The bearer value is encrypted before it reaches any
// backend that persists it.
type StoredToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Expired reports whether the token is past its expiry. Tokens without a
// known expiry never report expired.
func (t *StoredToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// TokenStore is the secure token store the coordinator mirrors its access
// token to. Implementations must never persist the bearer value in cleartext.
type TokenStore interface {
	Put(ctx context.Context, key string, token *StoredToken) error
	Get(ctx context.Context, key string) (*StoredToken, error)
	Delete(ctx context.Context, key string) error
}
