// Package minio implements the object store port on an S3-compatible
// server using minio-go.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"

	"github.com/Strob0t/chatrelay/internal/config"
	"github.com/Strob0t/chatrelay/internal/domain"
	"github.com/Strob0t/chatrelay/internal/domain/turn"
	"github.com/Strob0t/chatrelay/internal/port/objectstore"
)

// Store implements objectstore.Store against a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// NewStore creates a client for cfg.Endpoint. When cfg.CreateBucket is
// set the bucket is created if missing.
func NewStore(ctx context.Context, cfg config.ObjectStore) (*Store, error) {
	host, secure, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	s := &Store{client: client, bucket: cfg.Bucket, region: cfg.Region}
	if cfg.CreateBucket {
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}

	slog.Info("object store ready", "endpoint", host, "secure", secure, "bucket", cfg.Bucket)
	return s, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket exists %s: %w", domain.ErrStorage, s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("%w: make bucket %s: %w", domain.ErrStorage, s.bucket, err)
	}
	slog.Info("bucket created", "bucket", s.bucket)
	return nil
}

// PutObject writes body under key.
func (s *Store) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return mapError("put object", key, err)
	}
	return nil
}

// GetObject reads the body stored under key.
func (s *Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("get object", key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError("read object", key, err)
	}
	return data, nil
}

// PutTags replaces the tag set of key.
func (s *Store) PutTags(ctx context.Context, key string, t turn.Tags) error {
	ot, err := tags.NewTags(t, true)
	if err != nil {
		return fmt.Errorf("%w: invalid tags for %s: %w", domain.ErrValidation, key, err)
	}
	if err := s.client.PutObjectTagging(ctx, s.bucket, key, ot, minio.PutObjectTaggingOptions{}); err != nil {
		return mapError("put tags", key, err)
	}
	return nil
}

// GetTags returns the tag set of key.
func (s *Store) GetTags(ctx context.Context, key string) (turn.Tags, error) {
	ot, err := s.client.GetObjectTagging(ctx, s.bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, mapError("get tags", key, err)
	}
	return turn.Tags(ot.ToMap()), nil
}

// Health checks that the bucket is reachable.
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

// parseEndpoint turns "http://host:port" into minio-go's host and TLS flag.
// A bare host:port is treated as plain HTTP.
func parseEndpoint(endpoint string) (host string, secure bool, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, fmt.Errorf("%w: object store endpoint is empty", domain.ErrValidation)
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), false, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("%w: object store endpoint %q: %w", domain.ErrValidation, endpoint, err)
	}
	switch u.Scheme {
	case "http":
	case "https":
		secure = true
	default:
		return "", false, fmt.Errorf("%w: object store endpoint scheme %q", domain.ErrValidation, u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("%w: object store endpoint %q has no host", domain.ErrValidation, endpoint)
	}
	return u.Host, secure, nil
}

// mapError classifies S3 errors: missing keys and tag sets become
// domain.ErrNotFound, everything else (a missing bucket included)
// domain.ErrStorage.
func mapError(op, key string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchKey", "NoSuchTagSet":
			return fmt.Errorf("%w: %s %s: %s", domain.ErrNotFound, op, key, resp.Message)
		}
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, op, key, err)
}

var _ objectstore.Store = (*Store)(nil)
