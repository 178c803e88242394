package auth

import (
	"os"
	"time"
)

// tokenEnvVars are consulted in order
var tokenEnvVars = []string{"CLIPVAULT_AUTH_TOKEN", "HTTP_AUTHORIZATION_HEADER", "SORA_AUTH_TOKEN"}

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only and answers for any profile name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve builds credentials from the environment
func (e *EnvironmentStore) Retrieve(profile string) (*Credentials, error) {
	token := envToken()
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}

	return &Credentials{
		Profile:      profile,
		Token:        token,
		DeviceID:     os.Getenv("CLIPVAULT_DEVICE_ID"),
		UserAgent:    os.Getenv("CLIPVAULT_USER_AGENT"),
		Cookie:       os.Getenv("CLIPVAULT_COOKIE"),
		LastModified: time.Time{},
	}, nil
}

// List returns the environment profile when a token is set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	creds.Profile = "environment"
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists reports whether a token is set in the environment
func (e *EnvironmentStore) Exists(profile string) bool {
	return envToken() != ""
}

func envToken() string {
	for _, name := range tokenEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
