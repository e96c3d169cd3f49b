package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abuzaid911/uaepass-front/internal/config"
	"github.com/abuzaid911/uaepass-front/internal/crypto"
	"github.com/abuzaid911/uaepass-front/internal/idp"
	"github.com/abuzaid911/uaepass-front/internal/log"
	"github.com/abuzaid911/uaepass-front/internal/session"
	"github.com/abuzaid911/uaepass-front/internal/storage"
)

var BuildVersion = "dev"

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Authentication</title></head>
<body>
<h1>Authentication received</h1>
<p>You can close this window and return to the application.</p>
</body>
</html>`

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v1",
		"provider": map[string]any{
			"clientId":     "sandbox_stage",
			"clientSecret": map[string]string{"$env": "UAEPASS_CLIENT_SECRET"},
			"redirectUri":  "http://localhost:8765/callback",
		},
		"storage": map[string]any{
			"kind": "memory",
		},
		"attemptTtl": "5m",
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	fmt.Printf("Validating: %s\n", path)
	if _, err := config.Load(path); err != nil {
		fmt.Println("Result: FAIL")
		return err
	}
	fmt.Println("Result: PASS")
	return nil
}

// buildStore constructs the token store the config selects
func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.TokenStore, error) {
	switch cfg.Kind {
	case config.StorageKindFirestore:
		encryptor, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		return storage.NewFirestoreStore(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection, encryptor)
	default:
		return storage.NewMemoryStore(), nil
	}
}

// redirectSink receives candidate redirect URLs
type redirectSink interface {
	Offer(candidateURL string)
}

// guardedRedirectURI appends the per-run guard secret to the configured
// redirect URI. The provider echoes redirect URI query parameters back on the
// redirect, so only redirects initiated by this run carry the right guard.
func guardedRedirectURI(redirectURI, guard string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URI: %w", err)
	}
	q := u.Query()
	q.Set("guard", guard)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// callbackHandler funnels redirects carrying this run's guard secret into the
// sink. Anything else on the loopback port gets a 404; valid-looking but
// stale redirects that pass the guard are still absorbed by the gate's own
// correlation rules.
func callbackHandler(guard string, sink redirectSink) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("guard") != guard {
			http.NotFound(w, r)
			return
		}
		sink.Offer("http://" + r.Host + r.URL.String())
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, callbackPage)
	})
	return mux
}

// serveCallback runs the loopback HTTP listener for redirect delivery
func serveCallback(addr, guard string, sink redirectSink) *http.Server {
	server := &http.Server{Addr: addr, Handler: callbackHandler(guard, sink)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError("Callback listener failed: %v", err)
		}
	}()
	return server
}

func runLogin(cfg config.Config, method idp.AuthMethod, loginHint, listenAddr string, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}
	if closer, ok := store.(*storage.FirestoreStore); ok {
		defer closer.Close()
	}

	if sweeper, ok := store.(storage.ExpiryDeleter); ok {
		cleanup := storage.NewCleanupManager(sweeper, storage.DefaultCleanupInterval)
		cleanup.Start(ctx)
		defer cleanup.Stop()
	}

	guard, err := crypto.GenerateSecureToken()
	if err != nil {
		return fmt.Errorf("generating callback guard: %w", err)
	}
	cfg.Provider.RedirectURI, err = guardedRedirectURI(cfg.Provider.RedirectURI, guard)
	if err != nil {
		return err
	}

	coordinator := session.NewCoordinator(cfg, session.WithTokenStore(store))
	session.SetDefault(coordinator)

	if err := coordinator.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing coordinator: %w", err)
	}
	if err := coordinator.SetMethod(method); err != nil {
		return err
	}

	server := serveCallback(listenAddr, guard, coordinator)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	loginCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		loginCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	info, err := coordinator.Login(loginCtx, loginHint)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	method := flag.String("method", "standard", "authentication method: standard, push_notification, or visitor")
	loginHint := flag.String("login-hint", "", "Emirates ID or phone number hint for push_notification")
	listen := flag.String("listen", "localhost:8765", "address for the redirect callback listener")
	timeout := flag.Duration("timeout", 0, "overall login timeout (0 uses the attempt deadline only)")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	if *validate {
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting uaepass-front", map[string]any{
		"version": BuildVersion,
		"method":  *method,
	})

	if err := runLogin(cfg, idp.AuthMethod(*method), *loginHint, *listen, *timeout); err != nil {
		log.LogError("Login failed: %v", err)
		os.Exit(1)
	}
}
