package storage

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
)

type localBackend struct {
	basePath string
}

// NewLocalBackend stores objects as files under basePath.
func NewLocalBackend(basePath string) Backend {
	return &localBackend{basePath: basePath}
}

func (b *localBackend) Name() string {
	return "local"
}

func (b *localBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := os.MkdirAll(b.basePath, 0o755); err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(b.basePath, filepath.Base(key)), data, 0o644)
}

func (b *localBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := ioutil.ReadFile(filepath.Join(b.basePath, filepath.Base(key)))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	return data, err
}

func (b *localBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(b.basePath, filepath.Base(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
