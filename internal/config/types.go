package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the token store backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// ProviderConfig holds the UAE PASS endpoints and client credentials.
// Immutable after Load.
type ProviderConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"-"`
	RedirectURI  string `json:"redirectUri"`
	Scope        string `json:"scope"`

	AuthorizationURL string `json:"authorizationUrl"`
	TokenURL         string `json:"tokenUrl"`
	UserInfoURL      string `json:"userInfoUrl"`
	LogoutURL        string `json:"logoutUrl"`

	// acr_values identifiers selecting the provider's verification flow
	ACRValuesAppInstalled     string `json:"acrValuesAppInstalled"`
	ACRValuesAppNotInstalled  string `json:"acrValuesAppNotInstalled"`
	ACRValuesPushNotification string `json:"acrValuesPushNotification"`
}

// StorageConfig selects and configures the token store backend
type StorageConfig struct {
	Kind                StorageKind `json:"kind"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
	EncryptionKey       Secret      `json:"-"`
}

// Config is the root configuration
type Config struct {
	Version    string         `json:"version"`
	Provider   ProviderConfig `json:"provider"`
	Storage    StorageConfig  `json:"storage"`
	AttemptTTL time.Duration  `json:"-"`
}

// ParseConfigValue resolves a config value that is either a plain JSON string
// or an {"$env": "VAR_NAME"} reference.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	return value, nil
}
