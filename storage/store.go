package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"pilotage/idgen"
	"pilotage/session"
	"regexp"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

var (
	fileIdWorker = idgen.NewWorker()

	ErrObjectNotFound = errors.New("stored object not found")

	unsafeFileNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Backend is a flat key/value object store.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Name() string
}

// Store writes files under timestamped unique keys and fingerprints them with SHA-256.
type Store struct {
	backend Backend
	now     func() time.Time
	nonce   func() string
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now, nonce: func() string { return uuid.New().String() }}
}

func (s *Store) Write(ctx context.Context, data []byte, fileName, contentType string) (*StoredFile, error) {
	key := StorageKey(s.now(), s.nonce(), fileName)
	err := traced(ctx, "put-object", key, func() error {
		return s.backend.Put(ctx, key, data, contentType)
	})
	if err != nil {
		return nil, err
	}
	return &StoredFile{
		StorageKey:  key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    Checksum(data),
	}, nil
}

func (s *Store) Read(ctx context.Context, storageKey string) ([]byte, error) {
	var data []byte
	err := traced(ctx, "get-object", storageKey, func() error {
		var err error
		data, err = s.backend.Get(ctx, storageKey)
		return err
	})
	return data, err
}

func (s *Store) Delete(ctx context.Context, storageKey string) error {
	return traced(ctx, "delete-object", storageKey, func() error {
		return s.backend.Delete(ctx, storageKey)
	})
}

func (s *Store) BackendName() string {
	return s.backend.Name()
}

// StorageKey is "<UTC timestamp>-<nonce>-<file name>" with separators made path safe.
// Two writes of the same file name within one millisecond differ by nonce.
func StorageKey(t time.Time, nonce, fileName string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	name := unsafeFileNameChars.ReplaceAllString(fileName, "_")
	if name == "" {
		name = "file"
	}
	return ts + "-" + nonce + "-" + name
}

func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveFileObject records a stored file inside the caller's transaction.
func SaveFileObject(tx *gorm.DB, f *StoredFile, sec *session.Context) (*FileObject, error) {
	obj := &FileObject{
		ID:          idgen.NextID(fileIdWorker),
		StorageKey:  f.StorageKey,
		FileName:    f.FileName,
		ContentType: f.ContentType,
		Size:        f.Size,
		Checksum:    f.Checksum,
		CreatorID:   sec.ActorID(),
		CreateTime:  time.Now(),
	}
	if err := tx.Create(obj).Error; err != nil {
		return nil, err
	}
	return obj, nil
}

func FindFileObject(db *gorm.DB, id types.ID) (*FileObject, error) {
	var obj FileObject
	if err := db.Where("id = ?", id).First(&obj).Error; err != nil {
		return nil, err
	}
	return &obj, nil
}

func traced(ctx context.Context, operation, key string, fn func() error) error {
	if ctx == nil {
		return fn()
	}
	parentSpan := opentracing.SpanFromContext(ctx)
	if parentSpan == nil {
		return fn()
	}
	sp := parentSpan.Tracer().StartSpan(operation, opentracing.ChildOf(parentSpan.Context()))
	sp.SetTag("object-key", key)
	defer sp.Finish()

	err := fn()
	ext.Error.Set(sp, err != nil)
	return err
}
