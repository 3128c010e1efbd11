package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSStorage archives comment records as objects in a Google Cloud Storage
// bucket. It backs the "gcs" archive backend.
type GCSStorage struct {
	client *gcs.Client
	bucket string
}

// NewGCSStorage creates a GCS-backed StorageClient using Application
// Default Credentials.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs archive: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket}, nil
}

// Put writes one archived record under key. Records are small, so the
// upload is sent in a single request.
func (s *GCSStorage) Put(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = recordContentType
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get reads the archived record stored under key. A missing object reports
// ErrNotFound.
func (s *GCSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcs read gs://%s/%s: %w: %w", s.bucket, key, ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
