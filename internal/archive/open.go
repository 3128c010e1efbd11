package archive

import (
	"context"
	"fmt"

	"github.com/scanpost/scanpost/pkg/config"
)

// Open builds the Archive selected by cfg.Archive. It returns nil when
// archiving is disabled. getenv supplies static S3 credentials
// (SCANPOST_S3_ACCESS_KEY, SCANPOST_S3_SECRET_KEY) for S3-compatible stores.
func Open(ctx context.Context, cfg *config.Config, getenv func(string) string) (*Archive, error) {
	ac := cfg.Archive
	var store StorageClient

	switch ac.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendLocal:
		store = NewLocalStorage(cfg.ArchiveDir())
	case config.BackendS3:
		s3Store, err := NewS3Storage(ctx, S3Config{
			Bucket:    ac.Bucket,
			Region:    ac.Region,
			Endpoint:  ac.Endpoint,
			AccessKey: getenv("SCANPOST_S3_ACCESS_KEY"),
			SecretKey: getenv("SCANPOST_S3_SECRET_KEY"),
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	case config.BackendGCS:
		gcsStore, err := NewGCSStorage(ctx, ac.Bucket)
		if err != nil {
			return nil, err
		}
		store = gcsStore
	default:
		return nil, fmt.Errorf("unknown archive backend %q", ac.Backend)
	}

	return New(store, ac.Prefix), nil
}
