package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/bookshelf-be/internal/config"
)

// ImageStore is the external service holding uploaded cover images.
type ImageStore interface {
	// Upload stores the image and returns its durable public URL.
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	// Remove deletes the image identified by an asset ID derived from its
	// URL (base name without extension).
	Remove(ctx context.Context, assetID string) error
	// Managed reports whether the URL points into this store.
	Managed(rawURL string) bool
}

const objectPrefix = "covers/"

// MinioStore implements ImageStore on a MinIO bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	timeout time.Duration
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Msg("Created image bucket")
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: cfg.Timeout,
	}, nil
}

// Upload stores the image under a fresh object key and returns its URL.
func (s *MinioStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := objectPrefix + uuid.New().String() + extensionFor(contentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio upload: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// Remove deletes every object for the given asset ID. The ID carries no
// extension, so matching objects are found by prefix.
func (s *MinioStore) Remove(ctx context.Context, assetID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prefix := objectPrefix + assetID
	found := false
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return fmt.Errorf("minio list: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("minio remove: %w", err)
		}
		found = true
	}
	if !found {
		// Already gone; removal is idempotent.
		log.Debug().Str("asset_id", assetID).Msg("No objects matched asset on remove")
	}
	return nil
}

// Managed reports whether the URL was produced by this store.
func (s *MinioStore) Managed(rawURL string) bool {
	return strings.HasPrefix(rawURL, s.baseURL+"/")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
