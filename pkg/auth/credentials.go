package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"weibocrawl/pkg/logger"
)

// DefaultName is the credential used when none is named
const DefaultName = "default"

// Credential is a saved feed session: the cookie header value (or bare SUB
// token) and the user agent it was issued to.
type Credential struct {
	Name         string    `json:"name"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves cred under its name
	Store(cred *Credential) error

	// Retrieve gets the credential saved under name
	Retrieve(name string) (*Credential, error)

	// List returns every credential the store can enumerate
	List() ([]*Credential, error)

	// Delete removes the credential saved under name
	Delete(name string) error

	// Exists checks if a credential is saved under name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
	logger logger.Logger
}

// NewManager builds the store chain: system keychain when available, an
// encrypted file under the config directory, then the environment.
func NewManager(log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	var stores []CredentialStore

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	} else {
		log.WithError(err).Debug("System keychain unavailable, using encrypted file")
	}

	configDir, err := ConfigDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fileStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return &Manager{stores: stores, logger: log}, nil
}

// NewManagerWithStores uses exactly the given stores, in order
func NewManagerWithStores(log logger.Logger, stores ...CredentialStore) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{stores: stores, logger: log}
}

// Store saves cred in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return errors.New("credential name is required")
	}
	if cred.Cookie == "" {
		return errors.New("cookie is required")
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			m.logger.DebugWithFields("Credential stored", map[string]interface{}{
				"name":  cred.Name,
				"store": fmt.Sprintf("%T", store),
			})
			return nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the named credential from the first store holding it
func (m *Manager) Retrieve(name string) (*Credential, error) {
	if name == "" {
		name = DefaultName
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(name); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// List returns the newest copy of every credential across stores, by name
func (m *Manager) List() ([]*Credential, error) {
	byName := make(map[string]*Credential)
	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if existing, ok := byName[c.Name]; !ok || c.LastModified.After(existing.LastModified) {
				byName[c.Name] = c
			}
		}
	}

	result := make([]*Credential, 0, len(byName))
	for _, c := range byName {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the named credential from every store
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultName
	}
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// ConfigDirectory returns the per-user configuration directory, creating it
// if needed.
func ConfigDirectory() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "weibocrawl")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "weibocrawl")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "weibocrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "weibocrawl")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Sanitize returns a copy of cred safe to print
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}
	return &Credential{
		Name:         cred.Name,
		Cookie:       Mask(cred.Cookie),
		UserAgent:    cred.UserAgent,
		LastModified: cred.LastModified,
	}
}

// Mask hides all but the first and last four characters of s
func Mask(s string) string {
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
