package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned when the requested blob does not exist.
var ErrObjectNotFound = errors.New("media object not found")

// Storage keeps media blobs in an S3-compatible bucket, keyed by content
// hash. File names live in the database; the bucket only ever sees hashes.
type Storage struct {
	client *minio.Client
	bucket string
}

// NewStorage connects to the object store and creates the bucket if needed.
func NewStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}

	return &Storage{client: client, bucket: bucket}, nil
}

// Put stores a blob under its content hash.
func (s *Storage) Put(ctx context.Context, hash string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, hash, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("store object %s: %w", hash, err)
	}
	return nil
}

// Open streams a blob by content hash. The caller closes the reader.
func (s *Storage) Open(ctx context.Context, hash string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, hash, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("open object %s: %w", hash, err)
	}

	// GetObject is lazy; Stat forces the first round-trip so missing
	// objects fail here instead of on first read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("stat object %s: %w", hash, err)
	}
	return obj, info.Size, nil
}

// Exists reports whether a blob is already stored.
func (s *Storage) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, hash, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", hash, err)
	}
	return true, nil
}

// Remove deletes a blob. Removing a missing blob is not an error.
func (s *Storage) Remove(ctx context.Context, hash string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, hash, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", hash, err)
	}
	return nil
}
