package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps archived records as files below BaseDir, one file per
// key. It backs the "local" archive backend.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) (string, error) {
	base := filepath.Clean(s.BaseDir)
	p := filepath.Join(base, filepath.FromSlash(key))
	if p != base && !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes archive directory", key)
	}
	return p, nil
}

// Put writes data under key, creating directories as needed. Records are
// immutable once written, so files are created read-only for others.
func (s *LocalStorage) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("local put %s: %w", key, err)
	}
	return nil
}

// Get reads the blob stored under key.
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local get %s: %w: %w", key, ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("local get %s: %w", key, err)
	}
	return data, nil
}
