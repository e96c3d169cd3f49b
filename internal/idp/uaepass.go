package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/abuzaid911/uaepass-front/internal/config"
	"github.com/abuzaid911/uaepass-front/internal/log"
)

// UAEPassProvider implements the Provider interface for UAE PASS.
// UAE PASS selects its verification flow through acr_values: on-device app
// login when the native app is present, username/password otherwise, and a
// dedicated push-notification flow that can be targeted with a login_hint.
type UAEPassProvider struct {
	cfg          config.ProviderConfig
	oauth2Config oauth2.Config
	appInstalled bool
}

// uaePassProfileResponse represents the UAE PASS userinfo response.
// Identity fields double up: sub falls back to uuid, idn (Emirates ID) falls
// back to uuid for visitors without one.
type uaePassProfileResponse struct {
	Sub         string `json:"sub"`
	UUID        string `json:"uuid"`
	FirstnameEN string `json:"firstnameEN"`
	LastnameEN  string `json:"lastnameEN"`
	Email       string `json:"email"`
	IDN         string `json:"idn"`
	UnifiedID   string `json:"unifiedId"`
	ProfileType string `json:"profileType"`
}

// NewUAEPassProvider creates a UAE PASS provider. appInstalled is the cached
// result of the identity-app probe and steers acr_values selection.
func NewUAEPassProvider(cfg config.ProviderConfig, appInstalled bool) *UAEPassProvider {
	return &UAEPassProvider{
		cfg: cfg,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: string(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizationURL,
				TokenURL: cfg.TokenURL,
				// UAE PASS expects client credentials in the form body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		appInstalled: appInstalled,
	}
}

// AuthURL builds the authorization endpoint URL.
func (p *UAEPassProvider) AuthURL(method AuthMethod, state, loginHint string) string {
	opts := []oauth2.AuthCodeOption{
		// Force authentication every time so OTP flows are not skipped
		oauth2.SetAuthURLParam("prompt", "login"),
		oauth2.SetAuthURLParam("acr_values", p.acrValues(method)),
	}

	if method == MethodPushNotification && loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}

	return p.oauth2Config.AuthCodeURL(state, opts...)
}

// acrValues selects the trust tier for the method. Push notification always
// uses its dedicated flow; standard and visitor prefer the on-device flow
// when the native app is present.
func (p *UAEPassProvider) acrValues(method AuthMethod) string {
	if method == MethodPushNotification {
		return p.cfg.ACRValuesPushNotification
	}
	if p.appInstalled {
		return p.cfg.ACRValuesAppInstalled
	}
	return p.cfg.ACRValuesAppNotInstalled
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *UAEPassProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		// A RetrieveError is the provider rejecting the exchange and a
		// url.Error is the transport failing; anything else means the
		// endpoint answered 2xx with a body the token parser could not read.
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		if !errors.As(err, &retrieveErr) && !errors.As(err, &urlErr) {
			return nil, fmt.Errorf("token endpoint response unreadable: %v: %w", err, ErrMalformedResponse)
		}
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response: %w", ErrMalformedResponse)
	}
	return token, nil
}

// UserInfo fetches the profile from the userinfo endpoint and maps it.
func (p *UAEPassProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var profile uaePassProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", ErrMalformedResponse)
	}

	log.LogDebugWithFields("idp", "Received user info", map[string]any{
		"has_email":    profile.Email != "",
		"has_name":     profile.FirstnameEN != "" || profile.LastnameEN != "",
		"profile_type": profile.ProfileType,
	})

	return mapProfile(profile), nil
}

// mapProfile maps the UAE PASS profile shape into the application shape.
func mapProfile(profile uaePassProfileResponse) *UserInfo {
	id := profile.Sub
	if id == "" {
		id = profile.UUID
	}
	providerID := profile.IDN
	if providerID == "" {
		providerID = profile.UUID
	}

	return &UserInfo{
		ID:          id,
		DisplayName: strings.TrimSpace(profile.FirstnameEN + " " + profile.LastnameEN),
		Email:       profile.Email,
		ProviderID:  providerID,
		UnifiedID:   profile.UnifiedID,
		ProfileType: profile.ProfileType,
	}
}

// LogoutURL builds the provider logout URL with client and redirect params.
func (p *UAEPassProvider) LogoutURL() string {
	u, err := url.Parse(p.cfg.LogoutURL)
	if err != nil {
		return p.cfg.LogoutURL
	}
	q := u.Query()
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	u.RawQuery = q.Encode()
	return u.String()
}
