package auth

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"weibocrawl/pkg/logger"
)

// memStore is an in-memory CredentialStore with error injection
type memStore struct {
	mu       sync.Mutex
	creds    map[string]Credential
	storeErr error
}

func newMemStore() *memStore {
	return &memStore{creds: map[string]Credential{}}
}

func (m *memStore) Store(c *Credential) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.Name] = *c
	return nil
}

func (m *memStore) Retrieve(name string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &c, nil
}

func (m *memStore) List() ([]*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Credential
	for _, c := range m.creds {
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (m *memStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

func (m *memStore) Exists(name string) bool {
	_, err := m.Retrieve(name)
	return err == nil
}

func TestManagerStoreRetrieveDelete(t *testing.T) {
	store := newMemStore()
	m := NewManagerWithStores(logger.NewNopLogger(), store)

	require.NoError(t, m.Store(&Credential{Name: DefaultName, Cookie: "SUB=_2A25abcdefgh", UserAgent: "UA/1.0"}))

	got, err := m.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "SUB=_2A25abcdefgh", got.Cookie)
	assert.Equal(t, "UA/1.0", got.UserAgent)
	assert.False(t, got.LastModified.IsZero())

	list, err := m.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, m.Delete(DefaultName))
	_, err = m.Retrieve(DefaultName)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, m.Delete(DefaultName), ErrCredentialsNotFound)
}

func TestManagerValidates(t *testing.T) {
	m := NewManagerWithStores(nil, newMemStore())
	assert.Error(t, m.Store(&Credential{Cookie: "x"}))
	assert.Error(t, m.Store(&Credential{Name: "a"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := newMemStore()
	broken.storeErr = errors.New("keychain locked")
	backup := newMemStore()
	m := NewManagerWithStores(nil, broken, backup)

	require.NoError(t, m.Store(&Credential{Name: "alt", Cookie: "token"}))
	assert.True(t, backup.Exists("alt"))
	assert.False(t, broken.Exists("alt"))

	got, err := m.Retrieve("alt")
	require.NoError(t, err)
	assert.Equal(t, "token", got.Cookie)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older, newer := newMemStore(), newMemStore()
	older.creds["default"] = Credential{Name: "default", Cookie: "old", LastModified: time.Now().Add(-time.Hour)}
	newer.creds["default"] = Credential{Name: "default", Cookie: "new", LastModified: time.Now()}
	newer.creds["alt"] = Credential{Name: "alt", Cookie: "alt"}

	list, err := NewManagerWithStores(nil, older, newer).List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alt", list[0].Name)
	assert.Equal(t, "new", list[1].Cookie)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "correct horse battery staple")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Name: "default", Cookie: "SUB=secret-session-value"}))
	require.NoError(t, store.Store(&Credential{Name: "alt", Cookie: "other-secret"}))

	got, err := store.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "SUB=secret-session-value", got.Cookie)
	assert.True(t, store.Exists("alt"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret-session-value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alt", list[0].Name)

	require.NoError(t, store.Delete("alt"))
	require.NoError(t, store.Delete("default"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, store.Delete("default"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Name: "default", Cookie: "c"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("default")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Name: "default", Cookie: "c"}))

	_, err = os.Stat(filepath.Join(dir, passphraseFile))
	require.NoError(t, err)

	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "c", got.Cookie)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(envCookie, "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))

	t.Setenv(envCookie, "env-token")
	t.Setenv(envUserAgent, "EnvAgent/2.0")
	got, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, got.Name)
	assert.Equal(t, "env-token", got.Cookie)
	assert.Equal(t, "EnvAgent/2.0", got.UserAgent)

	assert.ErrorIs(t, store.Store(&Credential{Name: "x", Cookie: "y"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Name: DefaultName, Cookie: "kc-token"}))
	assert.True(t, store.Exists(DefaultName))

	got, err := store.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "kc-token", got.Cookie)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(DefaultName))
	assert.ErrorIs(t, store.Delete(DefaultName), ErrCredentialsNotFound)
	_, err = store.Retrieve(DefaultName)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestSanitize(t *testing.T) {
	cred := &Credential{Name: "default", Cookie: "SUB=_2A25LongSessionValue"}
	s := Sanitize(cred)
	assert.Equal(t, "SUB=...alue", s.Cookie)
	assert.Equal(t, "default", s.Name)
	assert.Equal(t, "********", Mask("short"))
	assert.Nil(t, Sanitize(nil))
}
