// Package statefile persists the session record and the manifest cache on
// the local filesystem. The session record is a small versioned TOML
// document written with owner-only permissions; the manifest cache holds
// the exact bytes of the last successful fetch.
package statefile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/galah-project/galah-cli/internal/domain"
	"github.com/galah-project/galah-cli/internal/ports"
)

const (
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	tempFilePattern = ".galah-state-*.tmp"
)

type Store struct {
	sessionPath  string
	manifestPath string
	mu           *sync.RWMutex
}

var _ ports.StateStore = (*Store)(nil)

// One lock per session path so two stores pointed at the same file within
// a process serialize their writes.
var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if lock, ok := pathLockMap[path]; ok {
		return lock
	}
	lock := &sync.RWMutex{}
	pathLockMap[path] = lock
	return lock
}

func NewStore(sessionPath, manifestPath string) (*Store, error) {
	sessionPath, err := normalizePath(sessionPath)
	if err != nil {
		return nil, err
	}
	manifestPath, err = normalizePath(manifestPath)
	if err != nil {
		return nil, err
	}

	return &Store{
		sessionPath:  sessionPath,
		manifestPath: manifestPath,
		mu:           lockForPath(sessionPath),
	}, nil
}

func normalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("state path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}
	return filepath.Clean(absPath), nil
}

func (s *Store) LoadSession(ctx context.Context) (domain.SessionState, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionState{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.SessionState{}, false, nil
		}
		return domain.SessionState{}, false, &domain.StateError{Path: s.sessionPath, Err: err}
	}

	var record sessionRecord
	if err := toml.Unmarshal(data, &record); err != nil {
		return domain.SessionState{}, false, &domain.StateError{
			Path: s.sessionPath,
			Err:  fmt.Errorf("decode session record: %w", err),
		}
	}
	if err := record.validateVersion(); err != nil {
		return domain.SessionState{}, false, &domain.StateError{Path: s.sessionPath, Err: err}
	}

	return record.toState(), true, nil
}

func (s *Store) SaveSession(ctx context.Context, state domain.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(toRecord(state))
	if err != nil {
		return &domain.StateError{Path: s.sessionPath, Err: fmt.Errorf("encode session record: %w", err)}
	}

	if err := writeFileAtomic(s.sessionPath, data); err != nil {
		return &domain.StateError{Path: s.sessionPath, Err: err}
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StateError{Path: s.sessionPath, Err: err}
	}
	return nil
}

func (s *Store) LoadManifest(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &domain.StateError{Path: s.manifestPath, Err: err}
	}
	return data, true, nil
}

func (s *Store) SaveManifest(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.manifestPath, raw); err != nil {
		return &domain.StateError{Path: s.manifestPath, Err: err}
	}
	return nil
}

func (s *Store) ClearManifest(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.manifestPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.StateError{Path: s.manifestPath, Err: err}
	}
	return nil
}

// writeFileAtomic writes data through a temp file in the target directory
// and renames it into place, so a crash never leaves a half-written
// record. The file ends up with owner-only permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("set state file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	cleanup = false
	return nil
}
