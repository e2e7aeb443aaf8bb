package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ManifestFile is the name of the asset manifest inside the media directory.
const ManifestFile = ".manifest.json"

const partSuffix = ".part"

// Manager handles file storage operations and duplicate detection
type Manager struct {
	dir      string
	manifest map[string]string
	// names handed out by NextFreeName but not yet on disk
	reserved map[string]bool
	mu       sync.Mutex
}

// NewManager creates dir if needed, loads its manifest and removes partial
// files left by an interrupted run.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	m := &Manager{
		dir:      dir,
		manifest: make(map[string]string),
		reserved: make(map[string]bool),
	}
	if err := m.loadManifest(); err != nil {
		return nil, err
	}
	if err := m.removePartials(); err != nil {
		return nil, fmt.Errorf("failed to scan media directory: %w", err)
	}
	return m, nil
}

func (m *Manager) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(m.dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &m.manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	return nil
}

func (m *Manager) removePartials() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), partSuffix) {
			os.Remove(filepath.Join(m.dir, entry.Name()))
		}
	}
	return nil
}

// Dir returns the media directory path
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the full path of a file in the media directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Lookup returns the file recorded for key if it still exists on disk
func (m *Manager) Lookup(key string) (string, bool) {
	m.mu.Lock()
	name, ok := m.manifest[key]
	m.mu.Unlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(m.Path(name)); err != nil {
		return "", false
	}
	return name, true
}

// NextFreeName picks the lowest index >= 1 not present on disk or reserved
// for prefix and ext, and reserves it until SaveFile, Commit or Release.
func (m *Manager) NextFreeName(prefix, ext string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for idx := 1; ; idx++ {
		name := fmt.Sprintf("%s_%02d.%s", prefix, idx, ext)
		if m.reserved[name] {
			continue
		}
		if _, err := os.Lstat(m.Path(name)); errors.Is(err, os.ErrNotExist) {
			m.reserved[name] = true
			return name
		}
	}
}

// Release gives back a reserved name that will not be written
func (m *Manager) Release(name string) {
	m.mu.Lock()
	delete(m.reserved, name)
	m.mu.Unlock()
}

// SaveFile writes r to name through a temporary file and an atomic rename
func (m *Manager) SaveFile(r io.Reader, name string) error {
	tmp, err := m.CreateTemp(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Abort()
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return tmp.Commit()
}

// CreateTemp opens a partial file that becomes name on Commit
func (m *Manager) CreateTemp(name string) (*TempFile, error) {
	f, err := os.CreateTemp(m.dir, "."+name+".*"+partSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &TempFile{File: f, manager: m, name: name}, nil
}

// Record maps key to name in the manifest and persists it
func (m *Manager) Record(key, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.manifest[key] = name
	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(m.dir, ManifestFile)
	tmp := path + partSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Count returns the number of assets in the manifest
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.manifest)
}

// TempFile is a partial asset that is invisible until committed
type TempFile struct {
	*os.File
	manager *Manager
	name    string
	done    bool
}

// Commit syncs, closes and renames the file into place
func (t *TempFile) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.manager.Release(t.name)

	tmpPath := t.File.Name()
	if err := t.File.Sync(); err != nil {
		t.File.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", t.name, err)
	}
	if err := t.File.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", t.name, err)
	}
	if err := os.Rename(tmpPath, t.manager.Path(t.name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Abort closes and removes the partial file
func (t *TempFile) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.File.Close()
	os.Remove(t.File.Name())
	t.manager.Release(t.name)
}
