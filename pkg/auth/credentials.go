package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"clipvault/pkg/config"

	"github.com/google/uuid"
)

// DefaultProfile is the profile name used when none is given
const DefaultProfile = "default"

// Credentials is the request identity for one profile
type Credentials struct {
	Profile      string    `json:"profile"`
	Token        string    `json:"token"`
	DeviceID     string    `json:"device_id"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Cookie       string    `json:"cookie,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a profile
	Store(creds *Credentials) error

	// Retrieve gets credentials for a profile
	Retrieve(profile string) (*Credentials, error)

	// List returns all stored profiles
	List() ([]*Credentials, error)

	// Delete removes credentials for a profile
	Delete(profile string) error

	// Exists checks if credentials exist for a profile
	Exists(profile string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keychain (when available),
// an encrypted file in configDir, and the environment, in that order.
// An empty configDir selects the per-user config directory.
func NewManager(configDir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them. A missing
// profile name becomes DefaultProfile and a missing device id is generated.
func (m *Manager) Store(creds *Credentials) error {
	if creds == nil || strings.TrimSpace(creds.Token) == "" {
		return errors.New("token is required")
	}
	if creds.Profile == "" {
		creds.Profile = DefaultProfile
	}
	if creds.DeviceID == "" {
		creds.DeviceID = NewDeviceID()
	}
	creds.Token = strings.TrimSpace(creds.Token)
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(creds)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(profile string) (*Credentials, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if creds, err := store.Retrieve(profile); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, profile)
}

// List returns every profile across stores; the newest copy of a profile wins
func (m *Manager) List() ([]*Credentials, error) {
	byProfile := make(map[string]*Credentials)

	for _, store := range m.stores {
		list, err := store.List()
		if err != nil {
			continue
		}
		for _, creds := range list {
			if existing, ok := byProfile[creds.Profile]; !ok || creds.LastModified.After(existing.LastModified) {
				byProfile[creds.Profile] = creds
			}
		}
	}

	result := make([]*Credentials, 0, len(byProfile))
	for _, creds := range byProfile {
		result = append(result, creds)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Profile < result[j].Profile })
	return result, nil
}

// Delete removes a profile from every store that holds it
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, profile)
	}
	return nil
}

// Apply fills the empty identity fields of api from the stored profile.
// Values already set by flags, environment or config file are kept.
func (m *Manager) Apply(profile string, api *config.APIConfig) (bool, error) {
	creds, err := m.Retrieve(profile)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			return false, nil
		}
		return false, err
	}

	if api.AuthToken == "" {
		api.AuthToken = creds.Token
	}
	if api.DeviceID == "" {
		api.DeviceID = creds.DeviceID
	}
	if api.Cookie == "" {
		api.Cookie = creds.Cookie
	}
	if creds.UserAgent != "" && api.UserAgent == config.DefaultUserAgent {
		api.UserAgent = creds.UserAgent
	}
	return true, nil
}

// NewDeviceID returns a random device id
func NewDeviceID() string {
	return uuid.NewString()
}

// ConfigDir returns the per-user clipvault configuration directory,
// creating it when missing
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "clipvault")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "clipvault")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "clipvault")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "clipvault")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize returns a copy with the token and cookie masked
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}
	out := *creds
	out.Token = maskString(creds.Token)
	if creds.Cookie != "" {
		out.Cookie = maskString(creds.Cookie)
	}
	return &out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
