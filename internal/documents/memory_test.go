package documents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

func TestMemoryRepositoryCreateAssignsIDAndPending(t *testing.T) {
	repo := NewMemoryRepository()

	doc, err := repo.Create(context.Background(), models.Document{
		OriginalFilename: "report.pdf",
		StoragePath:      "uploads/report.pdf",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.ThumbnailPending, doc.ThumbnailStatus)
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.HasThumbnail())

	got, err := repo.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestMemoryRepositoryMissing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(repo.SetThumbnail(ctx, "nope", "thumbs/nope.jpg")))
	assert.True(t, IsNotFound(repo.MarkThumbnailFailed(ctx, "nope", "boom")))
}

func TestMemoryRepositoryThumbnailLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	doc, err := repo.Create(ctx, models.Document{ID: "doc-1", StoragePath: "uploads/a.pdf"})
	require.NoError(t, err)

	require.NoError(t, repo.MarkThumbnailFailed(ctx, doc.ID, "conversion_failure"))
	got, _ := repo.Get(ctx, doc.ID)
	assert.Equal(t, models.ThumbnailFailed, got.ThumbnailStatus)
	assert.Equal(t, "conversion_failure", got.ThumbnailError)

	require.NoError(t, repo.SetThumbnail(ctx, doc.ID, "thumbs/a.jpg"))
	got, _ = repo.Get(ctx, doc.ID)
	assert.Equal(t, models.ThumbnailReady, got.ThumbnailStatus)
	assert.Equal(t, "thumbs/a.jpg", got.ThumbnailPath)
	assert.Empty(t, got.ThumbnailError)

	// A later failed regeneration keeps the published preview.
	require.NoError(t, repo.MarkThumbnailFailed(ctx, doc.ID, "transient_io"))
	got, _ = repo.Get(ctx, doc.ID)
	assert.Equal(t, "thumbs/a.jpg", got.ThumbnailPath)
	assert.Equal(t, models.ThumbnailFailed, got.ThumbnailStatus)
}

func TestMemoryRepositoryListWithoutThumbnail(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b", "done"} {
		_, err := repo.Create(ctx, models.Document{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetThumbnail(ctx, "done", "thumbs/done.jpg"))

	all, err := repo.ListWithoutThumbnail(ctx, 0)
	require.NoError(t, err)
	var ids []string
	for _, d := range all {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	limited, err := repo.ListWithoutThumbnail(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	doc, _ := repo.Create(ctx, models.Document{ID: "doc-1"})

	doc.ThumbnailPath = "mutated"

	got, _ := repo.Get(ctx, "doc-1")
	assert.Empty(t, got.ThumbnailPath)
}

func TestMemoryRepositoryCreateKeepsExisting(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, err := repo.Create(ctx, models.Document{ID: "doc-1", StoragePath: "uploads/a.pdf"})
	require.NoError(t, err)
	require.NoError(t, repo.SetThumbnail(ctx, "doc-1", "thumbs/a.jpg"))

	again, err := repo.Create(ctx, models.Document{ID: "doc-1", StoragePath: "uploads/a.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "thumbs/a.jpg", again.ThumbnailPath)
}

func TestMemoryRepositoryFailedRetryKeepsDocumentOutOfBackfill(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doc, err := repo.Create(ctx, models.Document{ID: "d1", StoragePath: "uploads/a.pdf"})
	require.NoError(t, err)
	require.NoError(t, repo.SetThumbnail(ctx, doc.ID, "thumbnails/d1.jpg"))
	require.NoError(t, repo.MarkThumbnailFailed(ctx, doc.ID, "conversion failed"))

	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ThumbnailFailed, got.ThumbnailStatus)
	assert.True(t, got.HasThumbnail())

	docs, err := repo.ListWithoutThumbnail(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}
