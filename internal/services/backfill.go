package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/pipeline"
)

// BackfillConfig holds configuration for the thumbnail-backfill service.
type BackfillConfig struct {
	Backend            BackendConfig
	Pipeline           PipelineConfig
	DefaultLimit       int
	DefaultConcurrency int
}

// BackfillFunction regenerates thumbnails for documents that do not have one.
type BackfillFunction struct {
	repo         documents.Repository
	orchestrator *pipeline.Orchestrator
	config       BackfillConfig
}

// NewBackfill creates a BackfillFunction from the environment.
func NewBackfill(ctx context.Context) (*BackfillFunction, error) {
	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}
	if backend.DocumentStore == "none" {
		return nil, fmt.Errorf("DOCUMENT_STORE must be firestore or postgres for the backfill")
	}
	config := BackfillConfig{
		Backend:            backend,
		Pipeline:           loadPipelineConfig(),
		DefaultLimit:       gcp.GetEnvInt("BACKFILL_LIMIT", 50),
		DefaultConcurrency: gcp.GetEnvInt("BACKFILL_CONCURRENCY", 4),
	}

	b, err := newBackends(ctx, config.Backend)
	if err != nil {
		return nil, err
	}
	return NewBackfillFromBackends(config, b), nil
}

// NewBackfillFromBackends assembles a BackfillFunction around existing backends.
func NewBackfillFromBackends(config BackfillConfig, b Backends) *BackfillFunction {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 50
	}
	if config.DefaultConcurrency <= 0 {
		config.DefaultConcurrency = 4
	}
	return &BackfillFunction{repo: b.Documents, orchestrator: newOrchestrator(config.Pipeline, b), config: config}
}

// Process lists documents without a thumbnail and generates them concurrently. Individual
// failures are reported in the response, not as an error.
func (f *BackfillFunction) Process(ctx context.Context, req *models.BackfillRequest) (*models.BackfillResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = f.config.DefaultLimit
	}
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = f.config.DefaultConcurrency
	}
	logCtx := slog.With("limit", limit, "concurrency", concurrency)

	docs, err := f.repo.ListWithoutThumbnail(ctx, limit)
	if err != nil {
		logCtx.Error("Failed to list documents without thumbnail.", "error", err)
		return nil, err
	}
	logCtx.Info("Starting thumbnail backfill.", "documents", len(docs))

	reqs := make([]pipeline.Request, 0, len(docs))
	for _, doc := range docs {
		reqs = append(reqs, pipeline.Request{
			DocumentID:       doc.ID,
			SourceKey:        doc.StoragePath,
			DerivedKey:       ThumbnailKey(f.config.Pipeline.ThumbnailPrefix, doc.ID),
			OriginalFilename: doc.OriginalFilename,
			MimeType:         doc.MimeType,
		})
	}

	res := &models.BackfillResponse{Status: "ok", Attempted: len(reqs)}
	for _, item := range f.orchestrator.GenerateMany(ctx, reqs, concurrency) {
		if item.Err != nil {
			res.Failed = append(res.Failed, item.Request.DocumentID)
			continue
		}
		res.Succeeded++
	}
	if len(res.Failed) > 0 {
		res.Status = "partial"
	}
	logCtx.Info("Backfill finished.", "succeeded", res.Succeeded, "failed", len(res.Failed))
	return res, nil
}
