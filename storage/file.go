package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend keeps one JSON file per document under dir/<kind>/<key>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the data directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(kind, key string) string {
	return filepath.Join(b.dir, kind, key+".json")
}

func (b *FileBackend) Load(_ context.Context, kind, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrNotExist
	}
	data, err := os.ReadFile(b.path(kind, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

func (b *FileBackend) Save(_ context.Context, kind, key string, data []byte) error {
	if !validKey(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := os.MkdirAll(filepath.Join(b.dir, kind), 0o755); err != nil {
		return err
	}
	return os.WriteFile(b.path(kind, key), data, 0o644)
}
