package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for ProviderConfig so that
// credentials can be given as {"$env": ...} references resolved at load time.
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type rawProvider struct {
		ClientID     json.RawMessage `json:"clientId"`
		ClientSecret json.RawMessage `json:"clientSecret"`
		RedirectURI  string          `json:"redirectUri"`
		Scope        string          `json:"scope"`

		AuthorizationURL string `json:"authorizationUrl"`
		TokenURL         string `json:"tokenUrl"`
		UserInfoURL      string `json:"userInfoUrl"`
		LogoutURL        string `json:"logoutUrl"`

		ACRValuesAppInstalled     string `json:"acrValuesAppInstalled"`
		ACRValuesAppNotInstalled  string `json:"acrValuesAppNotInstalled"`
		ACRValuesPushNotification string `json:"acrValuesPushNotification"`
	}

	var raw rawProvider
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.RedirectURI = raw.RedirectURI
	p.Scope = raw.Scope
	p.AuthorizationURL = raw.AuthorizationURL
	p.TokenURL = raw.TokenURL
	p.UserInfoURL = raw.UserInfoURL
	p.LogoutURL = raw.LogoutURL
	p.ACRValuesAppInstalled = raw.ACRValuesAppInstalled
	p.ACRValuesAppNotInstalled = raw.ACRValuesAppNotInstalled
	p.ACRValuesPushNotification = raw.ACRValuesPushNotification

	if raw.ClientID != nil {
		value, err := ParseConfigValue(raw.ClientID)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = value
	}

	if raw.ClientSecret != nil {
		value, err := ParseConfigValue(raw.ClientSecret)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                StorageKind     `json:"kind"`
		GCPProject          json.RawMessage `json:"gcpProject,omitempty"`
		FirestoreDatabase   string          `json:"firestoreDatabase,omitempty"`
		FirestoreCollection string          `json:"firestoreCollection,omitempty"`
		EncryptionKey       json.RawMessage `json:"encryptionKey,omitempty"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	if s.Kind == "" {
		s.Kind = StorageKindMemory
	}
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection

	if raw.GCPProject != nil {
		value, err := ParseConfigValue(raw.GCPProject)
		if err != nil {
			return fmt.Errorf("parsing gcpProject: %w", err)
		}
		s.GCPProject = value
	}

	if raw.EncryptionKey != nil {
		value, err := ParseConfigValue(raw.EncryptionKey)
		if err != nil {
			return fmt.Errorf("parsing encryptionKey: %w", err)
		}
		s.EncryptionKey = Secret(value)
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for Config, resolving the
// attempt TTL duration string.
func (c *Config) UnmarshalJSON(data []byte) error {
	type rawConfig struct {
		Version    string         `json:"version"`
		Provider   ProviderConfig `json:"provider"`
		Storage    StorageConfig  `json:"storage"`
		AttemptTTL string         `json:"attemptTtl,omitempty"`
	}

	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Version = raw.Version
	c.Provider = raw.Provider
	c.Storage = raw.Storage

	if raw.AttemptTTL != "" {
		ttl, err := time.ParseDuration(raw.AttemptTTL)
		if err != nil {
			return fmt.Errorf("parsing attemptTtl: %w", err)
		}
		c.AttemptTTL = ttl
	}

	return nil
}
