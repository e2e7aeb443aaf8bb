package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"weibocrawl/pkg/logger"
)

const currentVersion = 1

// Checkpoint is the resumable state of one profile's crawl
type Checkpoint struct {
	UID          string    `json:"uid"`
	ContainerID  string    `json:"container_id"`
	RunID        string    `json:"run_id"`
	Cursor       string    `json:"cursor"`
	Pages        int       `json:"pages"`
	PostsSeen    int       `json:"posts_seen"`
	RowsAppended int       `json:"rows_appended"`
	AssetsSaved  int       `json:"assets_saved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager returns a manager for uid's checkpoint in the data directory
func NewManager(uid string, log logger.Logger) (*Manager, error) {
	dataDir, err := DataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), uid, log)
}

// NewManagerAt returns a manager keeping uid's checkpoint under dir
func NewManagerAt(dir, uid string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, uid+".checkpoint.json"),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint for a run and saves it
func (m *Manager) Create(uid, containerID, runID string) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		UID:         uid,
		ContainerID: containerID,
		RunID:       runID,
		CreatedAt:   now,
		Version:     currentVersion,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	return cp, nil
}

// Load returns the saved checkpoint, or nil when there is none
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"uid":        cp.UID,
		"cursor":     cp.Cursor,
		"pages":      cp.Pages,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"uid":    cp.UID,
		"cursor": cp.Cursor,
		"pages":  cp.Pages,
	})
	return nil
}

// Advance records a fully ingested page and the cursor of the next one
func (m *Manager) Advance(cp *Checkpoint, cursor string, pages, posts, rows, assets int) error {
	cp.Cursor = cursor
	cp.Pages = pages
	cp.PostsSeen = posts
	cp.RowsAppended = rows
	cp.AssetsSaved = assets
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// DataDirectory returns the per-user data directory for the current OS,
// creating it if needed.
func DataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "weibocrawl")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "weibocrawl")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dataDir = filepath.Join(xdg, "weibocrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "weibocrawl")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
