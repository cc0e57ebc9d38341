package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/store"
	"github.com/Lllllllleong/documentpreview/internal/viewer"
)

// ViewerConfig holds configuration for the viewer-plan service.
type ViewerConfig struct {
	Backend BackendConfig
	Session viewer.Config
}

// ViewerFunction tells a client how to display a document and what to fall back to.
type ViewerFunction struct {
	repo   documents.Repository
	store  store.ArtifactStore
	config ViewerConfig
}

// NewViewerPlanner creates a ViewerFunction from the environment.
func NewViewerPlanner(ctx context.Context) (*ViewerFunction, error) {
	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}
	config := ViewerConfig{
		Backend: backend,
		Session: viewer.Config{
			MaxAttempts: gcp.GetEnvInt("VIEWER_MAX_ATTEMPTS", 1),
			LoadTimeout: gcp.GetEnvDuration("VIEWER_LOAD_TIMEOUT", viewer.DefaultConfig().LoadTimeout),
		},
	}

	b, err := newBackends(ctx, config.Backend)
	if err != nil {
		return nil, err
	}
	return NewViewerFromBackends(config, b), nil
}

// NewViewerFromBackends assembles a ViewerFunction around existing backends.
func NewViewerFromBackends(config ViewerConfig, b Backends) *ViewerFunction {
	return &ViewerFunction{repo: b.Documents, store: b.Store, config: config}
}

// Process resolves the viewer target and builds its plan.
func (f *ViewerFunction) Process(ctx context.Context, req *models.ViewerPlanRequest) (*viewer.Plan, error) {
	target, err := f.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	plan := viewer.BuildPlan(target, f.config.Session)
	slog.Info("Viewer plan built.", "documentId", req.DocumentID, "variant", plan.Variant, "steps", len(plan.Steps))
	return &plan, nil
}

// resolve fills the viewer fields from the stored document; explicit request fields win.
func (f *ViewerFunction) resolve(ctx context.Context, req *models.ViewerPlanRequest) (viewer.Target, error) {
	target := viewer.Target{
		FileURL:      req.FileURL,
		FileType:     req.FileType,
		Title:        req.Title,
		ThumbnailURL: req.ThumbnailURL,
	}
	if req.DocumentID == "" {
		if target.FileURL == "" {
			return target, fmt.Errorf("%w: documentId or fileUrl is required", ErrInvalidRequest)
		}
		return target, nil
	}
	if f.repo == nil {
		return target, fmt.Errorf("%w: documentId lookups need a document store", ErrInvalidRequest)
	}

	doc, err := f.repo.Get(ctx, req.DocumentID)
	if errors.Is(err, documents.ErrNotFound) {
		return target, err
	}
	if err != nil {
		return target, fmt.Errorf("failed to load document %s: %w", req.DocumentID, err)
	}

	if target.FileURL == "" {
		u, ok := f.store.PublicURL(doc.StoragePath)
		if !ok {
			return target, fmt.Errorf("document %s has no public URL", doc.ID)
		}
		target.FileURL = u
	}
	if target.FileType == "" {
		target.FileType = doc.MimeType
	}
	if target.Title == "" {
		target.Title = doc.OriginalFilename
	}
	if target.ThumbnailURL == "" && doc.HasThumbnail() {
		target.ThumbnailURL, _ = f.store.PublicURL(doc.ThumbnailPath)
	}
	return target, nil
}
