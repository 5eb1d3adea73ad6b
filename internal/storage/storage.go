// Package storage keeps uploaded task attachments on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/diewo77/taskflow/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("storage: object not found")

// Store persists attachment bytes under generated keys.
type Store interface {
	// Save writes r and returns the key the object is stored under.
	Save(ctx context.Context, originalName string, size int64, r io.Reader) (string, error)
	// Open returns a reader over a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeName replaces every character outside [a-zA-Z0-9._-] with an underscore.
func SafeName(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if safe == "" {
		return "file"
	}
	return safe
}

// ObjectKey builds a collision-free key that keeps the sanitized original name.
func ObjectKey(originalName string) string {
	return fmt.Sprintf("file_%s_%s", uuid.NewString(), SafeName(originalName))
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.UploadDir)
	case "s3":
		return NewS3Store(ctx, cfg, log)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}
