package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv  = "WEIBOCRAWL_PASSPHRASE"
	passphraseFile = ".passphrase"
	fileVersion    = 1
)

// EncryptedFileStore keeps credentials in one AES-GCM encrypted file keyed
// by a PBKDF2-derived key.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// envelope is the on-disk layout
type envelope struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store at path. The passphrase comes from
// WEIBOCRAWL_PASSPHRASE, or from a generated file next to path.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store saves cred, replacing any credential of the same name
func (e *EncryptedFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, salt, err := e.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load existing data: %w", err)
	}
	if creds == nil {
		creds = make(map[string]Credential)
	}
	creds[cred.Name] = *cred
	return e.save(creds, salt)
}

// Retrieve gets the named credential
func (e *EncryptedFileStore) Retrieve(name string) (*Credential, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, _, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	cred, ok := creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns every stored credential ordered by name
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, _, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return []*Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	list := make([]*Credential, 0, len(creds))
	for _, c := range creds {
		c := c
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// Delete removes the named credential, and the file with the last one
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	creds, salt, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	if _, ok := creds[name]; !ok {
		return ErrCredentialsNotFound
	}

	delete(creds, name)
	if len(creds) == 0 {
		return os.Remove(e.path)
	}
	return e.save(creds, salt)
}

// Exists checks if the named credential is stored
func (e *EncryptedFileStore) Exists(name string) bool {
	cred, err := e.Retrieve(name)
	return err == nil && cred != nil
}

// load decrypts the file, returning its credentials and salt
func (e *EncryptedFileStore) load() (map[string]Credential, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, deriveKey(e.passphrase, salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data (wrong %s?): %w", PassphraseEnv, err)
	}

	var creds map[string]Credential
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, salt, nil
}

// save encrypts creds and atomically replaces the file. A nil salt is
// generated.
func (e *EncryptedFileStore) save(creds map[string]Credential, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := encrypt(plain, deriveKey(e.passphrase, salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   fileVersion,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase prefers the environment, then a passphrase file in dir,
// generating one on first use.
func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
