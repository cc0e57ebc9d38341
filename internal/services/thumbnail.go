package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/pipeline"
)

// ThumbnailConfig holds configuration for the thumbnail-generator service.
type ThumbnailConfig struct {
	Backend  BackendConfig
	Pipeline PipelineConfig
	// APIToken, when set, must be presented as a bearer token.
	APIToken string
}

// ThumbnailFunction generates a preview for one stored file on request.
type ThumbnailFunction struct {
	orchestrator *pipeline.Orchestrator
	config       ThumbnailConfig
}

// NewThumbnailGenerator creates a ThumbnailFunction from the environment.
func NewThumbnailGenerator(ctx context.Context) (*ThumbnailFunction, error) {
	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}
	config := ThumbnailConfig{
		Backend:  backend,
		Pipeline: loadPipelineConfig(),
		APIToken: gcp.GetEnv("API_TOKEN", ""),
	}

	b, err := newBackends(ctx, config.Backend)
	if err != nil {
		return nil, err
	}
	return NewThumbnailFromBackends(config, b), nil
}

// NewThumbnailFromBackends assembles a ThumbnailFunction around existing backends.
func NewThumbnailFromBackends(config ThumbnailConfig, b Backends) *ThumbnailFunction {
	return &ThumbnailFunction{orchestrator: newOrchestrator(config.Pipeline, b), config: config}
}

// Authorize checks the Authorization header against the configured token. Without a token
// every caller is accepted.
func (f *ThumbnailFunction) Authorize(header string) error {
	if f.config.APIToken == "" {
		return nil
	}
	token := strings.TrimSpace(header)
	if len(token) < len("bearer ") || !strings.EqualFold(token[:len("bearer ")], "bearer ") {
		return ErrUnauthorized
	}
	token = strings.TrimSpace(token[len("bearer "):])
	if subtle.ConstantTimeCompare([]byte(token), []byte(f.config.APIToken)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Process runs the pipeline for one request and returns the derived key once it is published.
func (f *ThumbnailFunction) Process(ctx context.Context, req *models.GenerateThumbnailRequest) (*models.GenerateThumbnailResponse, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	logCtx := slog.With("documentId", req.DocumentID, "storagePath", req.StoragePath)
	logCtx.Info("Thumbnail requested.", "derivedStoragePath", req.DerivedStoragePath)

	result, err := f.orchestrator.Generate(ctx, pipelineRequest(req))
	if err != nil {
		// The job has already logged the failure with its context.
		return nil, err
	}
	logCtx.Info("Thumbnail ready.", "jobId", result.JobID, "bytes", result.Bytes, "shared", result.Shared)
	return &models.GenerateThumbnailResponse{DerivedStoragePath: result.DerivedKey}, nil
}
