package storage

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type gcsBackend struct {
	client *gcs.Client
	bucket string
}

func NewGCSBackend(client *gcs.Client, bucket string) Backend {
	return &gcsBackend{client: client, bucket: bucket}
}

// NewGCSClient prefers explicit credentials from GCS_CREDENTIALS_JSON and
// falls back to application default credentials.
func NewGCSClient(ctx context.Context) (*gcs.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return gcs.NewClient(ctx)
}

func (b *gcsBackend) Name() string {
	return "gcs"
}

func (b *gcsBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	wc := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func (b *gcsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func (b *gcsBackend) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}
