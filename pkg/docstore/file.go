package docstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ Store = (*FileStore)(nil)

// FileStore keeps each slot as a JSON file inside a data directory. It is
// the always-present persistence tier: writes go here unconditionally,
// even when a remote tier is configured.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, expanding a leading "~"
// and creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	expanded, err := expandHome(dir)
	if err != nil {
		return nil, &errors.ConfigError{Component: "docstore", Message: "resolving data dir", Err: err}
	}
	if err := os.MkdirAll(expanded, constants.DirPermissions); err != nil {
		return nil, &errors.ConfigError{Component: "docstore", Message: "creating data dir", Err: err}
	}
	return &FileStore{dir: expanded}, nil
}

// Get reads the slot's file. A missing file means the slot was never written.
func (s *FileStore) Get(_ context.Context, slot string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(slot))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.WrapPersistence(slot, "read", err)
	}
	return data, true, nil
}

// Put writes the slot's file through a temp file and rename so a crashed
// write never leaves a truncated document behind.
func (s *FileStore) Put(_ context.Context, slot string, data []byte) error {
	path := s.path(slot)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.FilePermissions); err != nil {
		return errors.WrapPersistence(slot, "write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.WrapPersistence(slot, "write", err)
	}
	return nil
}

// Dir returns the resolved data directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(slot string) string {
	return filepath.Join(s.dir, slot+".json")
}

// expandHome resolves a leading ~ to the current user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
