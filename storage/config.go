package storage

import (
	"context"
	"fmt"
	"os"
	"pilotage/common"
)

const (
	ProviderLocal = "local"
	ProviderOSS   = "oss"
	ProviderGCS   = "gcs"
)

// StoreFromEnv selects the backend with STORAGE_PROVIDER (local by default).
// The local backend writes under FILE_STORAGE_PATH.
func StoreFromEnv(ctx context.Context) (*Store, error) {
	switch provider := common.EnvOrDefault("STORAGE_PROVIDER", ProviderLocal); provider {
	case ProviderLocal:
		return NewStore(NewLocalBackend(common.EnvOrDefault("FILE_STORAGE_PATH", "./storage"))), nil
	case ProviderOSS:
		bucket, err := BuildBucketFromEnv()
		if err != nil {
			return nil, err
		}
		return NewStore(NewOSSBackend(bucket)), nil
	case ProviderGCS:
		bucket := os.Getenv("GCS_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required")
		}
		client, err := NewGCSClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewStore(NewGCSBackend(client, bucket)), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}
