package storage

import (
	"context"
	"fmt"

	"github.com/winchzone/dashboard/internal/config"
)

// New selects the backend named by the storage provider setting.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return NoopUploader{}, nil
	case "memory":
		return NewMemoryUploader(cfg.S3PublicURL), nil
	case "s3", "r2":
		return NewS3Uploader(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", cfg.Provider)
	}
}
