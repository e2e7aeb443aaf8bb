package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "weibocrawl"
	keyringPrefix  = "weibo_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore returns a keychain store after proving the keychain
// accepts writes.
func NewKeyringStore() (*KeyringStore, error) {
	const key = "availability_check"
	if err := keyring.Set(keyringService, key, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, key)
	return &KeyringStore{}, nil
}

// Store saves cred to the system keychain
func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+cred.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets the named credential from the system keychain
func (k *KeyringStore) Retrieve(name string) (*Credential, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}
	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// List cannot enumerate the keychain portably, so it only reports the
// default credential.
func (k *KeyringStore) List() ([]*Credential, error) {
	cred, err := k.Retrieve(DefaultName)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete removes the named credential from the system keychain
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	err := keyring.Delete(keyringService, keyringPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks if the named credential is in the keychain
func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+name)
	return err == nil
}
