package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
)

// GCSStore keeps artifacts in a single Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSStore wraps an existing client. publicBase overrides the default
// https://storage.googleapis.com/<bucket> prefix used by PublicURL.
func NewGCSStore(client *storage.Client, bucket, publicBase string) *GCSStore {
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicBase: publicBase}
}

func (s *GCSStore) Download(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", s.bucket, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

func (s *GCSStore) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	return gcp.SaveToGCS(ctx, s.client.Bucket(s.bucket), key, data, contentType, opts.Upsert)
}

func (s *GCSStore) PublicURL(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	return joinURL(s.publicBase, key), true
}

func isGCSNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist) ||
		errors.Is(err, storage.ErrBucketNotExist) ||
		gcp.HTTPStatus(err) == http.StatusNotFound
}
