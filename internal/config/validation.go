package config

import (
	"fmt"
	"net/url"
)

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	p := &config.Provider

	if p.ClientID == "" {
		return fmt.Errorf("provider.clientId is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("provider.clientSecret is required")
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("provider.redirectUri is required")
	}
	if _, err := url.Parse(p.RedirectURI); err != nil {
		return fmt.Errorf("provider.redirectUri is not a valid URL: %w", err)
	}

	for name, value := range map[string]string{
		"provider.authorizationUrl": p.AuthorizationURL,
		"provider.tokenUrl":         p.TokenURL,
		"provider.userInfoUrl":      p.UserInfoURL,
		"provider.logoutUrl":        p.LogoutURL,
	} {
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid absolute URL: %q", name, value)
		}
	}

	switch config.Storage.Kind {
	case StorageKindMemory:
	case StorageKindFirestore:
		if config.Storage.GCPProject == "" {
			return fmt.Errorf("storage.gcpProject is required for firestore storage")
		}
		if config.Storage.EncryptionKey == "" {
			return fmt.Errorf("storage.encryptionKey is required for firestore storage")
		}
	default:
		return fmt.Errorf("unsupported storage kind: %s", config.Storage.Kind)
	}

	if config.AttemptTTL < 0 {
		return fmt.Errorf("attemptTtl cannot be negative")
	}

	return nil
}
