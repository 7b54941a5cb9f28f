// Package storage persists uploaded profile pictures.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jon4hz/profilehub/internal/config"
)

// PublicPrefix is the URL prefix under which stored files are served.
const PublicPrefix = "/uploads/"

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("file not found")

// Object is a stored file opened for reading.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists uploaded files by name.
// Writes are not atomic and a second write to the same name replaces the first.
type Store interface {
	fmt.Stringer
	// Save writes data under name.
	Save(ctx context.Context, name string, data []byte) error
	// Open opens the file stored under name. The caller must close the body.
	Open(ctx context.Context, name string) (*Object, error)
}

// New creates the store selected by the configuration.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	switch cfg.Type {
	case config.StorageTypeLocal, "":
		return NewLocalStore(cfg.Dir)
	case config.StorageTypeS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// StoredName returns the name a user's upload is stored under.
// The filename is kept as is apart from the numeric user prefix, so the same
// user uploading the same filename twice overwrites the first file.
func StoredName(userID uint, filename string) string {
	return fmt.Sprintf("%d_%s", userID, filename)
}

// PublicPath returns the externally reachable path of a stored file.
func PublicPath(name string) string {
	return PublicPrefix + name
}

// validName rejects names that would escape the storage root.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

func detectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
