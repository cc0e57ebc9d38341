// Package documents persists the Document records that previews are attached to.
package documents

import (
	"context"
	"errors"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("document not found")

// Repository stores Documents. SetThumbnail and MarkThumbnailFailed make the repository usable
// as the orchestrator's recorder.
type Repository interface {
	// Create assigns an id when doc.ID is empty and returns the stored record.
	Create(ctx context.Context, doc models.Document) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	SetThumbnail(ctx context.Context, id, derivedKey string) error
	MarkThumbnailFailed(ctx context.Context, id, reason string) error
	// ListWithoutThumbnail returns up to limit documents that have no confirmed preview,
	// oldest first.
	ListWithoutThumbnail(ctx context.Context, limit int) ([]*models.Document, error)
}

// prepare fills the fields every backend sets on insert.
func prepare(doc *models.Document, now time.Time) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now.UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	if doc.ThumbnailStatus == "" {
		doc.ThumbnailStatus = models.ThumbnailPending
	}
}
