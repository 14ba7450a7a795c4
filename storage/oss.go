package storage

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type ossBackend struct {
	bucket *oss.Bucket
}

func NewOSSBackend(bucket *oss.Bucket) Backend {
	return &ossBackend{bucket: bucket}
}

func BuildBucketFromEnv() (*oss.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	if endpoint == "" {
		endpoint = "dummy"
	}
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "pilotage"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*oss.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, accesskey, secretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}
	return cli.Bucket(bucketName)
}

func (b *ossBackend) Name() string {
	return "oss"
}

func (b *ossBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return b.bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType))
}

func (b *ossBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.bucket.GetObject(key)
	if err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 404 {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func (b *ossBackend) Delete(ctx context.Context, key string) error {
	return b.bucket.DeleteObject(key)
}
