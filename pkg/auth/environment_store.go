package auth

import (
	"os"
	"time"
)

const (
	envCookie    = "WEIBOCRAWL_COOKIE"
	envUserAgent = "WEIBOCRAWL_USER_AGENT"
)

// EnvironmentStore reads a single read-only credential from
// WEIBOCRAWL_COOKIE, answering to any name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential under name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	cookie := os.Getenv(envCookie)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = DefaultName
	}
	return &Credential{
		Name:      name,
		Cookie:    cookie,
		UserAgent: os.Getenv(envUserAgent),
		// never newer than a saved credential of the same name
		LastModified: time.Time{},
	}, nil
}

// List returns the environment credential if one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultName)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists reports whether WEIBOCRAWL_COOKIE is set
func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(envCookie) != ""
}
