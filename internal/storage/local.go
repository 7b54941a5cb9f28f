package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

var _ Store = (*LocalStore)(nil)

// LocalStore keeps files in a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed and returns a store writing into it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (l *LocalStore) String() string { return "local" }

// Dir returns the directory files are stored in.
func (l *LocalStore) Dir() string {
	return l.dir
}

func (l *LocalStore) Save(_ context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (l *LocalStore) Open(_ context.Context, name string) (*Object, error) {
	if err := validName(name); err != nil {
		return nil, ErrNotFound
	}
	path := filepath.Join(l.dir, name)
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		f.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	return &Object{
		Body:        f,
		ContentType: mtype.String(),
		Size:        info.Size(),
	}, nil
}
