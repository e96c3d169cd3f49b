package idp

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// AuthMethod selects which UAE PASS verification flow is requested.
type AuthMethod string

const (
	// MethodStandard authenticates through the UAE PASS app or web login.
	MethodStandard AuthMethod = "standard"

	// MethodPushNotification triggers an approval push to the user's
	// registered UAE PASS app, optionally targeted with a login hint.
	MethodPushNotification AuthMethod = "push_notification"

	// MethodVisitor is the standard flow with visitor profile fields
	// (unifiedId, profileType) honored in the provider response.
	MethodVisitor AuthMethod = "visitor"
)

// Valid reports whether m is a known method.
func (m AuthMethod) Valid() bool {
	switch m {
	case MethodStandard, MethodPushNotification, MethodVisitor:
		return true
	}
	return false
}

// UserInfo is the application-facing profile mapped from the provider response.
type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	ProviderID  string `json:"provider_id"`

	// Populated only when the provider response carries visitor fields
	UnifiedID   string `json:"unified_id,omitempty"`
	ProfileType string `json:"profile_type,omitempty"`
}

// ErrMalformedResponse marks provider responses that are not JSON or are
// missing a required field. Wrapped by the concrete provider; callers check
// with errors.Is.
var ErrMalformedResponse = errors.New("malformed provider response")

// Provider abstracts the identity provider operations the coordinator needs.
type Provider interface {
	// AuthURL builds the authorization endpoint URL for one attempt.
	// Pure function of configuration, method, state, and hint.
	AuthURL(method AuthMethod, state, loginHint string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// Authorization codes are single-use; no retries.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// UserInfo fetches the profile for the token and maps it.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)

	// LogoutURL builds the provider logout URL.
	LogoutURL() string
}
