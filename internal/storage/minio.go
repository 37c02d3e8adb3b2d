package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Storage on a MinIO server through the native minio client.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	storage := &MinioStorage{client: client, bucket: cfg.Bucket}
	if err := storage.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return storage, nil
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("bucket %q does not exist and could not be created: %w", s.bucket, err)
	}

	slog.Info("created minio bucket", "bucket", s.bucket)
	return nil
}

func (s *MinioStorage) Put(ctx context.Context, suggestedName string, r io.Reader) (string, error) {
	key := NewKey(suggestedName)

	_, err := s.client.PutObject(ctx, s.bucket, key, r, readerSize(r), putOptions(key))
	if err != nil {
		return "", wrap("put", key, err)
	}

	return key, nil
}

// Unknown-size bodies are uploaded in parts of this size; minio-go buffers one part in memory.
// 16MB parts keep objects up to ~156GB within the 10000-part limit.
const minioPartSize = 16 << 20

func putOptions(key string) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{PartSize: minioPartSize}
	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		opts.ContentType = contentType
	}
	return opts
}

// readerSize reports the bytes left in r when it can seek, or -1 when the size is unknown.
func readerSize(r io.Reader) int64 {
	seeker, ok := r.(io.Seeker)
	if !ok {
		return -1
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return -1
	}
	return end - cur
}

func (s *MinioStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap("open", key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller starts streaming.
	_, err = obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isMinioNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, wrap("open", key, err)
	}

	return obj, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return wrap("delete", key, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
