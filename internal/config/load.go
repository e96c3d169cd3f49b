package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultAttemptTTL is how long an authentication attempt may stay pending
// before it is rejected with a timeout.
const DefaultAttemptTTL = 5 * time.Minute

// Staging defaults match the UAE PASS sandbox environment.
const (
	DefaultScope = "urn:uae:digitalid:profile:general" +
		" urn:uae:digitalid:profile:general:profileType" +
		" urn:uae:digitalid:profile:general:unifiedId"

	DefaultAuthorizationURL = "https://stg-id.uaepass.ae/idshub/authorize"
	DefaultTokenURL         = "https://stg-id.uaepass.ae/idshub/token"
	DefaultUserInfoURL      = "https://stg-id.uaepass.ae/idshub/userinfo"
	DefaultLogoutURL        = "https://stg-id.uaepass.ae/idshub/logout"

	DefaultACRAppInstalled     = "urn:digitalid:authentication:flow:mobileondevice"
	DefaultACRAppNotInstalled  = "urn:safelayer:tws:policies:authentication:level:low"
	DefaultACRPushNotification = "urn:digitalid:authentication:flow:pushnotification"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw config JSON with immediate env var resolution
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, "v1") {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// Parse into the typed Config struct. The custom UnmarshalJSON methods
	// resolve env vars immediately.
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func applyDefaults(config *Config) {
	p := &config.Provider
	if p.Scope == "" {
		p.Scope = DefaultScope
	}
	if p.AuthorizationURL == "" {
		p.AuthorizationURL = DefaultAuthorizationURL
	}
	if p.TokenURL == "" {
		p.TokenURL = DefaultTokenURL
	}
	if p.UserInfoURL == "" {
		p.UserInfoURL = DefaultUserInfoURL
	}
	if p.LogoutURL == "" {
		p.LogoutURL = DefaultLogoutURL
	}
	if p.ACRValuesAppInstalled == "" {
		p.ACRValuesAppInstalled = DefaultACRAppInstalled
	}
	if p.ACRValuesAppNotInstalled == "" {
		p.ACRValuesAppNotInstalled = DefaultACRAppNotInstalled
	}
	if p.ACRValuesPushNotification == "" {
		p.ACRValuesPushNotification = DefaultACRPushNotification
	}
	if config.AttemptTTL == 0 {
		config.AttemptTTL = DefaultAttemptTTL
	}
}

// validateRawConfig validates the config structure before environment
// resolution. Secrets must be env references, never inline strings.
func validateRawConfig(rawConfig map[string]any) error {
	if provider, ok := rawConfig["provider"].(map[string]any); ok {
		if err := requireEnvRef(provider, "clientSecret", true); err != nil {
			return err
		}
	}
	if storage, ok := rawConfig["storage"].(map[string]any); ok {
		if kind, ok := storage["kind"].(string); ok && kind == string(StorageKindFirestore) {
			if err := requireEnvRef(storage, "encryptionKey", true); err != nil {
				return err
			}
		} else {
			if err := requireEnvRef(storage, "encryptionKey", false); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireEnvRef(section map[string]any, name string, required bool) error {
	value, exists := section[name]
	if !exists {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}

	if _, isString := value.(string); isString {
		return fmt.Errorf("%s must use environment variable reference for security", name)
	}
	if refMap, isMap := value.(map[string]any); isMap {
		if _, hasEnv := refMap["$env"]; !hasEnv {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
		}
		return nil
	}
	return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
}
