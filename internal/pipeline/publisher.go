package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Lllllllleong/documentpreview/internal/store"
)

// Publisher writes derivatives back into the artifact store.
type Publisher struct {
	store  store.ArtifactStore
	logger *slog.Logger
}

func NewPublisher(s store.ArtifactStore, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: s, logger: logger}
}

// Publish upserts data at derivedKey. The store replaces the object in one write, so a
// concurrent reader sees the previous derivative or the new one, never a mix.
func (p *Publisher) Publish(ctx context.Context, data []byte, derivedKey string) error {
	if len(data) == 0 {
		return newError(KindUpload, "publish", derivedKey, errors.New("refusing to publish an empty derivative"))
	}
	opts := store.UploadOptions{
		ContentType: store.ContentTypeForKey(derivedKey),
		Upsert:      true,
	}
	if err := p.store.Upload(ctx, derivedKey, data, opts); err != nil {
		return newError(KindUpload, "publish", derivedKey, err)
	}
	p.logger.Info("Published derivative.", "derivedPath", derivedKey, "bytes", len(data), "contentType", opts.ContentType)
	return nil
}
