// Package store abstracts the object store that holds uploaded sources and their derivatives.
package store

import (
	"context"
	"errors"
	"mime"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound is returned by Download when the key holds no object.
var ErrNotFound = errors.New("object not found")

// UploadOptions controls a single Upload.
type UploadOptions struct {
	ContentType string
	// Upsert replaces an existing object atomically. Without it, uploading to an occupied key
	// leaves the existing object in place and succeeds.
	Upsert bool
}

// ArtifactStore is the subset of object storage the preview pipeline depends on.
type ArtifactStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	PublicURL(key string) (string, bool)
}

// ContentTypeForKey guesses a content type from the key's extension.
func ContentTypeForKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// joinURL appends an object key to a base URL, escaping each path segment.
func joinURL(base, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}
