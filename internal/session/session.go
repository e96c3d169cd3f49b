// Package session owns the authentication coordinator lifecycle: one shared
// instance per process, because exactly one authentication attempt is
// meaningful at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/abuzaid911/uaepass-front/internal/authflow"
	"github.com/abuzaid911/uaepass-front/internal/browser"
	"github.com/abuzaid911/uaepass-front/internal/config"
	"github.com/abuzaid911/uaepass-front/internal/idp"
	"github.com/abuzaid911/uaepass-front/internal/log"
	"github.com/abuzaid911/uaepass-front/internal/storage"
)

// State tracks coordinator initialization
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// Coordinator drives the authorization code flow end to end: it begins
// attempts on the gate, hands the authorization URL to the external-open
// capability, waits for the correlated callback, runs the code-for-token and
// token-for-profile exchanges, and mirrors the resulting token to the store.
type Coordinator struct {
	mu           sync.Mutex
	state        State
	method       idp.AuthMethod
	appInstalled bool
	accessToken  string
	provider     idp.Provider

	cfg      config.Config
	gate     *authflow.Gate
	opener   browser.Opener
	detector browser.AppDetector
	store    storage.TokenStore
	tokenKey string

	initGroup singleflight.Group
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithOpener overrides the external-open capability
func WithOpener(opener browser.Opener) Option {
	return func(c *Coordinator) { c.opener = opener }
}

// WithAppDetector overrides the identity-app probe
func WithAppDetector(detector browser.AppDetector) Option {
	return func(c *Coordinator) { c.detector = detector }
}

// WithTokenStore overrides the secure token store
func WithTokenStore(store storage.TokenStore) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithProvider overrides the identity provider (tests point it at fakes)
func WithProvider(provider idp.Provider) Option {
	return func(c *Coordinator) { c.provider = provider }
}

// NewCoordinator creates a coordinator. Call Initialize before use.
func NewCoordinator(cfg config.Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:    StateUninitialized,
		method:   idp.MethodStandard,
		cfg:      cfg,
		gate:     authflow.NewGate(cfg.AttemptTTL),
		opener:   browser.SystemOpener{},
		detector: browser.NotInstalledDetector{},
		store:    storage.NewMemoryStore(),
		tokenKey: storage.DefaultTokenKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize runs the identity-app probe and prepares the provider.
// Idempotent: repeat calls after the coordinator is ready are no-ops, and
// concurrent calls share one probe.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	_, err, _ := c.initGroup.Do("initialize", func() (any, error) {
		installed, err := c.detector.Installed(ctx)
		if err != nil {
			c.mu.Lock()
			c.state = StateUninitialized
			c.mu.Unlock()
			return nil, authflow.NewFlowError(authflow.ErrInitializationFailed,
				fmt.Sprintf("identity app probe failed: %v", err))
		}

		c.mu.Lock()
		c.appInstalled = installed
		if c.provider == nil {
			c.provider = idp.NewUAEPassProvider(c.cfg.Provider, installed)
		}
		c.state = StateReady
		c.mu.Unlock()

		log.LogInfoWithFields("session", "Coordinator initialized", map[string]any{
			"app_installed": installed,
		})
		return nil, nil
	})
	return err
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AppInstalled reports the cached probe result
func (c *Coordinator) AppInstalled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appInstalled
}

// SetMethod records the method variant used by the next attempt
func (c *Coordinator) SetMethod(method idp.AuthMethod) error {
	if !method.Valid() {
		return authflow.NewFlowError(authflow.ErrInitializationFailed,
			fmt.Sprintf("unknown auth method %q", method))
	}
	c.mu.Lock()
	c.method = method
	c.mu.Unlock()
	return nil
}

// Method returns the active method variant
func (c *Coordinator) Method() idp.AuthMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.method
}

// Offer feeds a candidate redirect URL to the gate. All redirect delivery
// channels (deep-link events, webview navigation observations, the startup
// initial-URL check) funnel through here.
func (c *Coordinator) Offer(candidateURL string) {
	c.gate.Offer(candidateURL)
}

// Cancel rejects the pending attempt, if any. Safe to call from a UI surface
// being torn down regardless of attempt state.
func (c *Coordinator) Cancel(reason string) {
	c.gate.Cancel(reason)
}

// BeginAttempt starts a fresh attempt for the active method and returns it
// together with the authorization URL to hand to the external-open
// capability. Callers that drive the open themselves wait on the attempt.
func (c *Coordinator) BeginAttempt(loginHint string) (*authflow.Attempt, string, error) {
	provider, err := c.ready()
	if err != nil {
		return nil, "", err
	}

	attempt, err := c.gate.BeginAttempt(c.Method(), loginHint)
	if err != nil {
		return nil, "", err
	}
	return attempt, provider.AuthURL(attempt.Method, attempt.State, attempt.LoginHint), nil
}

// Login runs the flow end to end: begin an attempt, open the authorization
// URL, wait for the correlated callback, then exchange and map the profile.
func (c *Coordinator) Login(ctx context.Context, loginHint string) (*idp.UserInfo, error) {
	attempt, authURL, err := c.BeginAttempt(loginHint)
	if err != nil {
		return nil, err
	}

	if err := c.opener.Open(authURL); err != nil {
		c.gate.Cancel("external open failed")
		return nil, authflow.NewFlowError(authflow.ErrCancelled, err.Error())
	}

	log.LogDebug("Waiting for authorization callback...")
	code, err := attempt.Wait(ctx)
	if err != nil {
		// A context expiry leaves the attempt pending; settle it so a later
		// redirect for this attempt is rejected rather than half-alive.
		c.gate.Cancel("caller stopped waiting")
		return nil, err
	}

	return c.exchange(ctx, code)
}

// ProcessAuthentication accepts an already-extracted code/state pair, e.g.
// from a webview navigation observer that parsed the redirect itself. The
// pair still passes through the gate's state validation; this entry style
// skips only the wait, never the CSRF check.
func (c *Coordinator) ProcessAuthentication(ctx context.Context, code, state string) (*idp.UserInfo, error) {
	if _, err := c.ready(); err != nil {
		return nil, err
	}

	if err := c.gate.Claim(code, state); err != nil {
		return nil, err
	}
	return c.exchange(ctx, code)
}

// Logout opens the provider logout URL and clears the local token. The local
// token is cleared synchronously even if the external open fails.
func (c *Coordinator) Logout(ctx context.Context) error {
	provider, err := c.ready()
	if err != nil {
		return err
	}

	c.mu.Lock()
	hadToken := c.accessToken != ""
	c.accessToken = ""
	c.mu.Unlock()

	if hadToken {
		if openErr := c.opener.Open(provider.LogoutURL()); openErr != nil {
			log.LogWarn("Failed to open logout URL: %v", openErr)
		}
	}

	if err := c.store.Delete(ctx, c.tokenKey); err != nil {
		return fmt.Errorf("failed to clear stored token: %w", err)
	}
	return nil
}

// Reset cancels any pending attempt and returns the coordinator to the
// uninitialized state, dropping the in-memory token.
func (c *Coordinator) Reset() {
	c.gate.Cancel("coordinator reset")

	c.mu.Lock()
	c.state = StateUninitialized
	c.method = idp.MethodStandard
	c.appInstalled = false
	c.accessToken = ""
	c.provider = nil
	c.mu.Unlock()
}

// HasToken reports whether a login has produced a token this session
func (c *Coordinator) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

func (c *Coordinator) ready() (idp.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.provider == nil {
		return nil, authflow.NewFlowError(authflow.ErrInitializationFailed,
			"coordinator is not initialized")
	}
	return c.provider, nil
}

// exchange runs the two sequential round-trips and stores the token only
// after both succeed. No partial state survives a failure.
func (c *Coordinator) exchange(ctx context.Context, code string) (*idp.UserInfo, error) {
	provider, err := c.ready()
	if err != nil {
		return nil, err
	}

	token, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		if errors.Is(err, idp.ErrMalformedResponse) {
			return nil, authflow.NewFlowError(authflow.ErrMalformedResponse, err.Error())
		}
		return nil, authflow.NewFlowError(authflow.ErrTokenExchange, err.Error())
	}

	info, err := provider.UserInfo(ctx, token)
	if err != nil {
		if errors.Is(err, idp.ErrMalformedResponse) {
			return nil, authflow.NewFlowError(authflow.ErrMalformedResponse, err.Error())
		}
		return nil, authflow.NewFlowError(authflow.ErrUserInfoFetch, err.Error())
	}

	stored := &storage.StoredToken{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.Expiry,
	}
	if stored.ExpiresAt.IsZero() {
		if exp, ok := idp.TokenExpiry(token.AccessToken); ok {
			stored.ExpiresAt = exp
		}
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.mu.Unlock()

	if err := c.store.Put(ctx, c.tokenKey, stored); err != nil {
		// The in-memory token is authoritative for this session; a mirror
		// failure is operational, not a login failure.
		log.LogError("Failed to mirror token to store: %v", err)
	}

	log.LogInfoWithFields("session", "Login completed", map[string]any{
		"profile_type": info.ProfileType,
		"has_email":    info.Email != "",
	})
	return info, nil
}

var (
	defaultMu          sync.Mutex
	defaultCoordinator *Coordinator
)

// SetDefault installs the process-wide shared coordinator
func SetDefault(c *Coordinator) {
	defaultMu.Lock()
	defaultCoordinator = c
	defaultMu.Unlock()
}

// Default returns the process-wide shared coordinator, or nil if none has
// been installed.
func Default() *Coordinator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultCoordinator
}
