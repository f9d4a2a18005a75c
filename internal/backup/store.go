package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kochj23/SceneFixer/internal/health"
)

// ErrBackupNotFound is returned when a backup ID is not in the store.
var ErrBackupNotFound = errors.New("backup: not found")

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
)

// Logger defines the logging interface used by the FileStore.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// FromScene captures the scene's current device membership.
func FromScene(s *health.Scene) health.SceneBackup {
	names := make([]string, 0, len(s.ReachableNames)+len(s.UnreachableNames))
	names = append(names, s.ReachableNames...)
	names = append(names, s.UnreachableNames...)
	return health.SceneBackup{
		ID:            uuid.NewString(),
		SceneID:       s.ID,
		SceneName:     s.Name,
		CreatedAt:     time.Now().UTC(),
		DeviceNames:   names,
		Configuration: map[string]string{},
	}
}

// FileStore is a JSON-file backed backup collection.
//
// Thread Safety: all methods are safe for concurrent use.
type FileStore struct {
	path    string
	backups []health.SceneBackup
	mu      sync.RWMutex
	logger  Logger
}

// Open loads the collection at path. Load problems are logged and the
// store starts empty.
//
// Parameters:
//   - path: JSON file; created on the first Save
//   - logger: Logger instance (may be nil)
//
// Returns:
//   - *FileStore: never nil
func Open(path string, logger Logger) *FileStore {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &FileStore{path: path, logger: logger}
	s.backups = s.load()
	return s
}

func (s *FileStore) load() []health.SceneBackup {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading backup file failed, starting empty", "path", s.path, "error", err)
		}
		return []health.SceneBackup{}
	}

	var backups []health.SceneBackup
	if err := json.Unmarshal(data, &backups); err != nil {
		s.logger.Warn("backup file is corrupt, starting empty", "path", s.path, "error", err)
		return []health.SceneBackup{}
	}
	if backups == nil {
		backups = []health.SceneBackup{}
	}
	s.logger.Info("backups loaded", "path", s.path, "count", len(backups))
	return backups
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string {
	return s.path
}

// Save appends a backup and rewrites the file. On a write failure the
// backup is not kept and the error is returned.
func (s *FileStore) Save(b health.SceneBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]health.SceneBackup, len(s.backups), len(s.backups)+1)
	copy(next, s.backups)
	next = append(next, b)

	if err := s.write(next); err != nil {
		s.logger.Error("persisting backups failed", "path", s.path, "error", err)
		return err
	}
	s.backups = next
	s.logger.Debug("backup saved", "backup_id", b.ID, "scene_id", b.SceneID)
	return nil
}

// write replaces the file atomically with temp file + rename.
func (s *FileStore) write(backups []health.SceneBackup) error {
	data, err := json.MarshalIndent(backups, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling backups: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backups-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("writing backups: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing backups: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		return fmt.Errorf("setting backup file mode: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming backup file: %w", err)
	}

	success = true
	return nil
}

// List returns every backup in insertion order.
func (s *FileStore) List() []health.SceneBackup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]health.SceneBackup, len(s.backups))
	for i, b := range s.backups {
		out[i] = clone(b)
	}
	return out
}

// ForScene returns the backups of one scene, oldest first.
func (s *FileStore) ForScene(sceneID string) []health.SceneBackup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []health.SceneBackup
	for _, b := range s.backups {
		if b.SceneID == sceneID {
			out = append(out, clone(b))
		}
	}
	return out
}

// Get returns one backup by ID.
func (s *FileStore) Get(id string) (health.SceneBackup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.backups {
		if b.ID == id {
			return clone(b), nil
		}
	}
	return health.SceneBackup{}, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// Len returns the number of backups.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.backups)
}

func clone(b health.SceneBackup) health.SceneBackup {
	cpy := b
	if b.DeviceNames != nil {
		cpy.DeviceNames = append([]string(nil), b.DeviceNames...)
	}
	if b.Configuration != nil {
		cpy.Configuration = make(map[string]string, len(b.Configuration))
		for k, v := range b.Configuration {
			cpy.Configuration[k] = v
		}
	}
	return cpy
}
