package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process ArtifactStore used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	// FailDownload, when set, is returned by every Download (after the not-found check).
	FailDownload error
	// FailUpload, when set, is returned by every Upload.
	FailUpload error
	publicBase string
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), publicBase: publicBase}
}

// Put seeds an object without going through Upload.
func (s *MemoryStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: ContentTypeForKey(key)}
}

func (s *MemoryStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailDownload != nil {
		return nil, s.FailDownload
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("mem://%s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpload != nil {
		return s.FailUpload
	}
	if _, exists := s.objects[key]; exists && !opts.Upsert {
		return nil
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *MemoryStore) PublicURL(key string) (string, bool) {
	if key == "" || s.publicBase == "" {
		return "", false
	}
	return joinURL(s.publicBase, key), true
}

// ContentType returns the stored content type of key.
func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}

// Has reports whether key holds an object.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
