package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abuzaid911/uaepass-front/internal/authflow"
	"github.com/abuzaid911/uaepass-front/internal/config"
	"github.com/abuzaid911/uaepass-front/internal/idp"
	"github.com/abuzaid911/uaepass-front/internal/storage"
	"github.com/abuzaid911/uaepass-front/internal/testutil"
)

// openerFunc adapts a function to the browser.Opener interface
type openerFunc func(url string) error

func (f openerFunc) Open(url string) error { return f(url) }

// fakeProvider is a configurable httptest stand-in for UAE PASS
type fakeProvider struct {
	server      *httptest.Server
	tokenStatus int
	tokenRaw    string
	accessToken string
	profile     map[string]any
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{
		tokenStatus: http.StatusOK,
		accessToken: "tok1",
		profile: map[string]any{
			"sub":         "u1",
			"firstnameEN": "Jane",
			"lastnameEN":  "Doe",
			"email":       "j@x.com",
			"idn":         "784-1987-1234567-1",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if fp.tokenStatus != http.StatusOK {
			http.Error(w, "server error", fp.tokenStatus)
			return
		}
		if fp.tokenRaw != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(fp.tokenRaw))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": fp.accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+fp.accessToken, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.profile)
	})

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) config() config.Config {
	return config.Config{
		Version: "v1",
		Provider: config.ProviderConfig{
			ClientID:     "sandbox_stage",
			ClientSecret: "sandbox_stage_secret",
			RedirectURI:  "propertyapp://callback",
			Scope:        config.DefaultScope,

			AuthorizationURL: fp.server.URL + "/authorize",
			TokenURL:         fp.server.URL + "/token",
			UserInfoURL:      fp.server.URL + "/userinfo",
			LogoutURL:        fp.server.URL + "/logout",

			ACRValuesAppInstalled:     config.DefaultACRAppInstalled,
			ACRValuesAppNotInstalled:  config.DefaultACRAppNotInstalled,
			ACRValuesPushNotification: config.DefaultACRPushNotification,
		},
		AttemptTTL: 2 * time.Second,
	}
}

// redirectingOpener simulates the OS deep-link channel: it extracts the state
// from the opened authorization URL and delivers the redirect asynchronously.
func redirectingOpener(t *testing.T, c *Coordinator, query string) openerFunc {
	t.Helper()
	return func(openedURL string) error {
		u, err := url.Parse(openedURL)
		require.NoError(t, err)
		state := u.Query().Get("state")
		require.NotEmpty(t, state)

		go c.Offer(fmt.Sprintf("propertyapp://callback?%s&state=%s", query, state))
		return nil
	}
}

func readyCoordinator(t *testing.T, fp *fakeProvider, opts ...Option) *Coordinator {
	t.Helper()
	c := NewCoordinator(fp.config(), opts...)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestInitializeIdempotent(t *testing.T) {
	detector := &testutil.MockAppDetector{}
	detector.On("Installed", mock.Anything).Return(true, nil).Once()

	c := NewCoordinator(newFakeProvider(t).config(), WithAppDetector(detector))
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, StateReady, c.State())
	assert.True(t, c.AppInstalled())
	detector.AssertExpectations(t)
}

func TestInitializeProbeFailure(t *testing.T) {
	detector := &testutil.MockAppDetector{}
	detector.On("Installed", mock.Anything).Return(false, fmt.Errorf("no platform bridge"))

	c := NewCoordinator(newFakeProvider(t).config(), WithAppDetector(detector))
	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrInitializationFailed))
	assert.Equal(t, StateUninitialized, c.State())
}

func TestSetMethod(t *testing.T) {
	c := NewCoordinator(newFakeProvider(t).config())

	assert.Equal(t, idp.MethodStandard, c.Method())
	require.NoError(t, c.SetMethod(idp.MethodVisitor))
	assert.Equal(t, idp.MethodVisitor, c.Method())

	err := c.SetMethod(idp.AuthMethod("sms"))
	require.Error(t, err)
	assert.Equal(t, idp.MethodVisitor, c.Method())
}

func TestLoginRequiresInitialize(t *testing.T) {
	c := NewCoordinator(newFakeProvider(t).config())

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrInitializationFailed))
}

func TestLoginStandard(t *testing.T) {
	fp := newFakeProvider(t)
	store := storage.NewMemoryStore()

	c := NewCoordinator(fp.config(), WithTokenStore(store))
	c.opener = redirectingOpener(t, c, "code=abc123")
	require.NoError(t, c.Initialize(context.Background()))

	info, err := c.Login(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, &idp.UserInfo{
		ID:          "u1",
		DisplayName: "Jane Doe",
		Email:       "j@x.com",
		ProviderID:  "784-1987-1234567-1",
	}, info)
	assert.True(t, c.HasToken())

	stored, err := store.Get(context.Background(), storage.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok1", stored.AccessToken)
	assert.False(t, stored.ExpiresAt.IsZero())
}

func TestLoginVisitor(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile["unifiedId"] = "V123"
	fp.profile["profileType"] = "VISITOR"

	c := NewCoordinator(fp.config())
	c.opener = redirectingOpener(t, c, "code=abc123")
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.SetMethod(idp.MethodVisitor))

	info, err := c.Login(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "V123", info.UnifiedID)
	assert.Equal(t, "VISITOR", info.ProfileType)
}

func TestLoginProviderError(t *testing.T) {
	fp := newFakeProvider(t)

	c := NewCoordinator(fp.config())
	c.opener = redirectingOpener(t, c, "error=access_denied")
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)

	var fe *authflow.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, authflow.ErrProviderError, fe.Code)
	assert.Equal(t, "access_denied", fe.ProviderCode)
}

func TestLoginTokenEndpointFailure(t *testing.T) {
	fp := newFakeProvider(t)
	fp.tokenStatus = http.StatusInternalServerError
	store := storage.NewMemoryStore()

	c := NewCoordinator(fp.config(), WithTokenStore(store))
	c.opener = redirectingOpener(t, c, "code=abc123")
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrTokenExchange))
	assert.False(t, c.HasToken())

	// Nothing was written to the token store
	_, err = store.Get(context.Background(), storage.DefaultTokenKey)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestLoginTokenEndpointUnparsableBody(t *testing.T) {
	fp := newFakeProvider(t)
	fp.tokenRaw = `<html>maintenance page</html>`

	c := NewCoordinator(fp.config())
	c.opener = redirectingOpener(t, c, "code=abc123")
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrMalformedResponse))
}

func TestLoginPushNotificationCarriesHint(t *testing.T) {
	fp := newFakeProvider(t)

	var openedURL string
	c := NewCoordinator(fp.config())
	c.opener = openerFunc(func(u string) error {
		openedURL = u
		go func() {
			parsed, _ := url.Parse(u)
			c.Offer("propertyapp://callback?code=abc123&state=" + parsed.Query().Get("state"))
		}()
		return nil
	})
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.SetMethod(idp.MethodPushNotification))

	_, err := c.Login(context.Background(), "971501234567")
	require.NoError(t, err)

	u, err := url.Parse(openedURL)
	require.NoError(t, err)
	assert.Equal(t, "971501234567", u.Query().Get("login_hint"))
	assert.Equal(t, config.DefaultACRPushNotification, u.Query().Get("acr_values"))
}

func TestLoginOpenFailureCancelsAttempt(t *testing.T) {
	fp := newFakeProvider(t)

	opener := &testutil.MockOpener{}
	opener.On("Open", mock.Anything).Return(fmt.Errorf("no browser available"))

	c := readyCoordinator(t, fp, WithOpener(opener))

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrCancelled))
}

func TestLoginTimeout(t *testing.T) {
	fp := newFakeProvider(t)
	cfg := fp.config()
	cfg.AttemptTTL = 30 * time.Millisecond

	opener := &testutil.MockOpener{}
	opener.On("Open", mock.Anything).Return(nil)

	c := NewCoordinator(cfg, WithOpener(opener))
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrTimeout))
}

func TestProcessAuthentication(t *testing.T) {
	fp := newFakeProvider(t)
	c := readyCoordinator(t, fp, WithOpener(&discardOpener{}))

	attempt, _, err := c.BeginAttempt("")
	require.NoError(t, err)

	info, err := c.ProcessAuthentication(context.Background(), "abc123", attempt.State)
	require.NoError(t, err)
	assert.Equal(t, "u1", info.ID)
}

func TestProcessAuthenticationRejectsForgedState(t *testing.T) {
	fp := newFakeProvider(t)
	c := readyCoordinator(t, fp, WithOpener(&discardOpener{}))

	_, _, err := c.BeginAttempt("")
	require.NoError(t, err)

	_, err = c.ProcessAuthentication(context.Background(), "abc123", "forged")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrInvalidState))
}

func TestProcessAuthenticationWithoutAttempt(t *testing.T) {
	fp := newFakeProvider(t)
	c := readyCoordinator(t, fp, WithOpener(&discardOpener{}))

	_, err := c.ProcessAuthentication(context.Background(), "abc123", "anything")
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrInvalidState))
}

func TestLogout(t *testing.T) {
	fp := newFakeProvider(t)
	store := storage.NewMemoryStore()

	var openedURLs []string
	c := NewCoordinator(fp.config(), WithTokenStore(store))
	c.opener = openerFunc(func(u string) error {
		openedURLs = append(openedURLs, u)
		if len(openedURLs) == 1 {
			go func() {
				parsed, _ := url.Parse(u)
				c.Offer("propertyapp://callback?code=abc123&state=" + parsed.Query().Get("state"))
			}()
		}
		return nil
	})
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.NoError(t, err)
	require.True(t, c.HasToken())

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.HasToken())

	// Logout URL was opened with client and redirect params
	require.Len(t, openedURLs, 2)
	u, err := url.Parse(openedURLs[1])
	require.NoError(t, err)
	assert.Equal(t, "/logout", u.Path)
	assert.Equal(t, "sandbox_stage", u.Query().Get("client_id"))

	_, err = store.Get(context.Background(), storage.DefaultTokenKey)
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestLogoutWithoutTokenSkipsOpen(t *testing.T) {
	fp := newFakeProvider(t)

	opener := &testutil.MockOpener{}
	c := readyCoordinator(t, fp, WithOpener(opener))

	require.NoError(t, c.Logout(context.Background()))
	opener.AssertNotCalled(t, "Open", mock.Anything)
}

func TestLogoutClearsTokenEvenIfOpenFails(t *testing.T) {
	fp := newFakeProvider(t)
	store := storage.NewMemoryStore()

	failOnLogout := false
	c := NewCoordinator(fp.config(), WithTokenStore(store))
	c.opener = openerFunc(func(u string) error {
		if failOnLogout {
			return fmt.Errorf("browser gone")
		}
		go func() {
			parsed, _ := url.Parse(u)
			c.Offer("propertyapp://callback?code=abc123&state=" + parsed.Query().Get("state"))
		}()
		return nil
	})
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Login(context.Background(), "")
	require.NoError(t, err)

	failOnLogout = true
	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.HasToken())
}

func TestNewLoginSupersedesPending(t *testing.T) {
	fp := newFakeProvider(t)
	c := readyCoordinator(t, fp, WithOpener(&discardOpener{}))

	first, _, err := c.BeginAttempt("")
	require.NoError(t, err)

	_, _, err = c.BeginAttempt("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = first.Wait(ctx)
	require.Error(t, err)
	assert.True(t, authflow.IsCode(err, authflow.ErrSuperseded))
}

func TestReset(t *testing.T) {
	fp := newFakeProvider(t)
	c := readyCoordinator(t, fp, WithOpener(&discardOpener{}))

	attempt, _, err := c.BeginAttempt("")
	require.NoError(t, err)

	c.Reset()
	assert.Equal(t, StateUninitialized, c.State())
	assert.False(t, c.HasToken())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = attempt.Wait(ctx)
	assert.True(t, authflow.IsCode(err, authflow.ErrCancelled))

	// Re-initialization brings the coordinator back
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, StateReady, c.State())
}

func TestDefaultCoordinator(t *testing.T) {
	assert.Nil(t, Default())

	c := NewCoordinator(newFakeProvider(t).config())
	SetDefault(c)
	t.Cleanup(func() { SetDefault(nil) })

	assert.Same(t, c, Default())
}

// discardOpener accepts any open without side effects
type discardOpener struct{}

func (*discardOpener) Open(string) error { return nil }
