package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// MemoryRepository keeps Documents in process memory. Used by tests and local runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]models.Document
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]models.Document), now: time.Now}
}

// Create keeps an existing record with the same id, like the other backends.
func (r *MemoryRepository) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	prepare(&doc, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.docs[doc.ID]; ok {
		return &existing, nil
	}
	r.docs[doc.ID] = doc
	out := doc
	return &out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryRepository) SetThumbnail(ctx context.Context, id, derivedKey string) error {
	return r.update(id, func(d *models.Document) {
		d.ThumbnailPath = derivedKey
		d.ThumbnailStatus = models.ThumbnailReady
		d.ThumbnailError = ""
	})
}

// MarkThumbnailFailed keeps a previously confirmed preview; only the status and reason change.
func (r *MemoryRepository) MarkThumbnailFailed(ctx context.Context, id, reason string) error {
	return r.update(id, func(d *models.Document) {
		d.ThumbnailStatus = models.ThumbnailFailed
		d.ThumbnailError = reason
	})
}

func (r *MemoryRepository) ListWithoutThumbnail(ctx context.Context, limit int) ([]*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Document
	for _, d := range r.docs {
		if d.HasThumbnail() {
			continue
		}
		doc := d
		out = append(out, &doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) update(id string, fn func(*models.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&doc)
	doc.UpdatedAt = r.now().UTC()
	r.docs[id] = doc
	return nil
}
