package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/antman-dev/oauth-precommit/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectMirror copies the token record into an S3-compatible bucket.
type ObjectMirror struct {
	client *minio.Client
	cfg    config.ObjectMirrorConfig
}

// NewObjectMirror creates the object storage client. No request is made until first use.
func NewObjectMirror(cfg config.ObjectMirrorConfig) (*ObjectMirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object mirror: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object mirror: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object mirror: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object mirror: secret key is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("object mirror: create client: %w", err)
	}
	return &ObjectMirror{client: client, cfg: cfg}, nil
}

// Name identifies the mirror in logs.
func (m *ObjectMirror) Name() string { return "object" }

// Close is a no-op; the minio client holds no long-lived connections of its own.
func (m *ObjectMirror) Close() error { return nil }

// Push uploads the record, creating the bucket on first use.
func (m *ObjectMirror) Push(ctx context.Context, key string, data []byte) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	fullKey := m.prefixedKey(key)
	_, err := m.client.PutObject(ctx, m.cfg.Bucket, fullKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("object mirror: put object %s: %w", fullKey, err)
	}
	return nil
}

// Pull downloads the record, returning nil when the object or bucket does not exist.
func (m *ObjectMirror) Pull(ctx context.Context, key string) ([]byte, error) {
	fullKey := m.prefixedKey(key)
	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, fullKey, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object mirror: get object %s: %w", fullKey, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object mirror: read object %s: %w", fullKey, err)
	}
	return data, nil
}

// Remove deletes the record; a missing object is not an error.
func (m *ObjectMirror) Remove(ctx context.Context, key string) error {
	fullKey := m.prefixedKey(key)
	err := m.client.RemoveObject(ctx, m.cfg.Bucket, fullKey, minio.RemoveObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil
		}
		return fmt.Errorf("object mirror: delete object %s: %w", fullKey, err)
	}
	return nil
}

func (m *ObjectMirror) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("object mirror: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		return fmt.Errorf("object mirror: create bucket: %w", err)
	}
	return nil
}

func (m *ObjectMirror) prefixedKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if m.cfg.Prefix == "" {
		return key
	}
	return strings.TrimLeft(m.cfg.Prefix+"/"+key, "/")
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
