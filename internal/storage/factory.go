package storage

import (
	"context"
	"fmt"

	"github.com/hitoshi/recordgate/internal/config"
)

// NewFromConfig は設定されたバックエンドのObjectStoreを生成する。
func NewFromConfig(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		store, err := NewS3Store(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.StoragePublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBackendFilesystem:
		if cfg.StoragePublicBaseURL == "" {
			return nil, fmt.Errorf("filesystem storage requires a public base URL")
		}
		store, err := NewFileSystemStore(cfg.StorageDir, cfg.StoragePublicBaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageBackendMemory:
		return NewMemoryStore("recordgate"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
