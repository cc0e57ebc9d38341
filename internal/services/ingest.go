package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/pipeline"
)

// IngestConfig holds configuration for the upload-ingestor service.
type IngestConfig struct {
	Backend  BackendConfig
	Pipeline PipelineConfig
}

// IngestFunction records every finalized upload as a Document and then tries to give it a
// thumbnail.
type IngestFunction struct {
	repo         documents.Repository
	orchestrator *pipeline.Orchestrator
	config       IngestConfig
}

// NewIngestor creates an IngestFunction from the environment.
func NewIngestor(ctx context.Context) (*IngestFunction, error) {
	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}
	if backend.DocumentStore == "none" {
		return nil, fmt.Errorf("DOCUMENT_STORE must be firestore or postgres for the ingestor")
	}
	config := IngestConfig{Backend: backend, Pipeline: loadPipelineConfig()}

	b, err := newBackends(ctx, config.Backend)
	if err != nil {
		return nil, err
	}
	return NewIngestorFromBackends(config, b), nil
}

// NewIngestorFromBackends assembles an IngestFunction around existing backends.
func NewIngestorFromBackends(config IngestConfig, b Backends) *IngestFunction {
	return &IngestFunction{repo: b.Documents, orchestrator: newOrchestrator(config.Pipeline, b), config: config}
}

// DocumentID derives a stable id from the object's location, so a redelivered event maps to
// the same document.
func DocumentID(bucket, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("gs://"+bucket+"/"+name)).String()
}

// Process creates the document and then attempts its thumbnail. Only a failure to create the
// document is returned; thumbnail failures are recorded on the document and logged.
func (f *IngestFunction) Process(ctx context.Context, event models.StorageObjectEvent) (*models.Document, error) {
	logCtx := slog.With("bucket", event.Bucket, "object", event.Name)

	if event.Name == "" || strings.HasSuffix(event.Name, "/") {
		logCtx.Info("Ignoring event without an object.")
		return nil, nil
	}
	if bucket := f.config.Backend.ArtifactBucket; bucket != "" && event.Bucket != bucket {
		logCtx.Info("Ignoring object outside the artifact bucket.", "artifactBucket", bucket)
		return nil, nil
	}
	if strings.HasPrefix(event.Name, f.config.Pipeline.ThumbnailPrefix) {
		logCtx.Info("Ignoring derived artifact.")
		return nil, nil
	}

	doc, err := f.createDocument(ctx, event)
	if err != nil {
		logCtx.Error("Failed to create document.", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("documentId", doc.ID)
	logCtx.Info("Document recorded.", "mimeType", doc.MimeType, "size", doc.Size)

	if doc.HasThumbnail() {
		logCtx.Info("Document already has a thumbnail, skipping generation.")
		return doc, nil
	}

	f.generateThumbnail(ctx, logCtx, doc)
	if updated, err := f.repo.Get(ctx, doc.ID); err == nil {
		doc = updated
	}
	return doc, nil
}

func (f *IngestFunction) createDocument(ctx context.Context, event models.StorageObjectEvent) (*models.Document, error) {
	filename := event.Metadata["originalFilename"]
	if filename == "" {
		filename = path.Base(event.Name)
	}
	size, _ := strconv.ParseInt(event.Size, 10, 64)

	return f.repo.Create(ctx, models.Document{
		ID:               DocumentID(event.Bucket, event.Name),
		OriginalFilename: filename,
		MimeType:         event.ContentType,
		StoragePath:      event.Name,
		Size:             size,
	})
}

// generateThumbnail is best effort: its outcome never reaches the caller.
func (f *IngestFunction) generateThumbnail(ctx context.Context, logCtx *slog.Logger, doc *models.Document) {
	result, err := f.orchestrator.Generate(ctx, pipeline.Request{
		DocumentID:       doc.ID,
		SourceKey:        doc.StoragePath,
		DerivedKey:       ThumbnailKey(f.config.Pipeline.ThumbnailPrefix, doc.ID),
		OriginalFilename: doc.OriginalFilename,
		MimeType:         doc.MimeType,
	})
	if err != nil {
		logCtx.Warn("Document saved without a thumbnail.", "error", err, "kind", pipeline.KindOf(err).String())
		return
	}
	logCtx.Info("Thumbnail attached to document.", "derivedStoragePath", result.DerivedKey)
}
