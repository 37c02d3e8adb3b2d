package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	cfg "github.com/templui/taskfiles/internal/config"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinio = "minio"

	keyPrefix = "attachments"
)

var (
	// ErrNotFound means the key has no bytes behind it, e.g. after an external purge.
	ErrNotFound = errors.New("blob not found")
)

// Storage stores raw attachment bytes under opaque keys.
type Storage interface {
	// Put stores the content and returns the generated key
	Put(ctx context.Context, suggestedName string, r io.Reader) (string, error)

	// Open returns the content for key, or ErrNotFound
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Error is a backend failure (disk full, permission denied, network).
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Op: op, Key: key, Err: err}
}

// New creates the backend selected by STORAGE_BACKEND.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageBackend {
	case BackendLocal, "":
		slog.Info("initializing local storage", "root", c.StorageLocalRoot)
		return NewLocalStorage(c.StorageLocalRoot)
	case BackendS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
		})
	case BackendMinio:
		slog.Info("initializing minio storage", "bucket", c.MinioBucket, "endpoint", c.MinioEndpoint)
		return NewMinioStorage(MinioConfig{
			Endpoint:  c.MinioEndpoint,
			AccessKey: c.MinioAccessKey,
			SecretKey: c.MinioSecretKey,
			Bucket:    c.MinioBucket,
			UseSSL:    c.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// NewKey builds a fresh storage key. Only a short, lowercase alphanumeric extension of the
// suggested name survives; the rest of the name never reaches the backend.
func NewKey(suggestedName string) string {
	return keyPrefix + "/" + uuid.New().String() + safeExt(suggestedName)
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
