package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/lock"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/pipeline"
	"github.com/Lllllllleong/documentpreview/internal/store"
)

// BackendConfig selects and configures the storage, document and lock backends shared by
// every function.
type BackendConfig struct {
	ProjectID           string
	ArtifactBucket      string
	StorageBackend      string
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOUseSSL         bool
	PublicBaseURL       string
	DocumentStore       string
	FirestoreDatabase   string
	FirestoreCollection string
	PostgresDSN         string
	RedisAddr           string
	RedisPassword       string
}

func loadBackendConfig() (BackendConfig, error) {
	config := BackendConfig{
		ProjectID:           gcp.GetEnv("PROJECT_ID", ""),
		ArtifactBucket:      gcp.GetEnv("ARTIFACT_BUCKET", ""),
		StorageBackend:      gcp.GetEnv("STORAGE_BACKEND", "gcs"),
		MinIOEndpoint:       gcp.GetEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:      gcp.GetEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:      gcp.GetEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:         gcp.GetEnvBool("MINIO_USE_SSL", false),
		PublicBaseURL:       gcp.GetEnv("PUBLIC_BASE_URL", ""),
		DocumentStore:       gcp.GetEnv("DOCUMENT_STORE", "firestore"),
		FirestoreDatabase:   gcp.GetEnv("FIRESTORE_DATABASE", ""),
		FirestoreCollection: gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		PostgresDSN:         gcp.GetEnv("POSTGRES_DSN", ""),
		RedisAddr:           gcp.GetEnv("REDIS_ADDR", ""),
		RedisPassword:       gcp.GetEnv("REDIS_PASSWORD", ""),
	}
	if config.ArtifactBucket == "" {
		return config, fmt.Errorf("ARTIFACT_BUCKET environment variable must be set")
	}
	switch config.StorageBackend {
	case "gcs":
	case "minio":
		if config.MinIOEndpoint == "" {
			return config, fmt.Errorf("MINIO_ENDPOINT must be set when STORAGE_BACKEND=minio")
		}
	default:
		return config, fmt.Errorf("unknown STORAGE_BACKEND %q", config.StorageBackend)
	}
	switch config.DocumentStore {
	case "firestore":
		if config.ProjectID == "" {
			return config, fmt.Errorf("PROJECT_ID environment variable must be set")
		}
	case "postgres":
		if config.PostgresDSN == "" {
			return config, fmt.Errorf("POSTGRES_DSN must be set when DOCUMENT_STORE=postgres")
		}
	case "none":
	default:
		return config, fmt.Errorf("unknown DOCUMENT_STORE %q", config.DocumentStore)
	}
	return config, nil
}

// Backends are the collaborators a function is built from. Tests fill them with in-memory
// implementations.
type Backends struct {
	Store     store.ArtifactStore
	Documents documents.Repository
	Locker    lock.Locker
	// Converter defaults to the external-tool converter.
	Converter pipeline.Converter
}

func newBackends(ctx context.Context, config BackendConfig) (Backends, error) {
	var b Backends

	switch config.StorageBackend {
	case "minio":
		st, err := store.NewMinIOStore(ctx, store.MinIOConfig{
			Endpoint:   config.MinIOEndpoint,
			AccessKey:  config.MinIOAccessKey,
			SecretKey:  config.MinIOSecretKey,
			UseSSL:     config.MinIOUseSSL,
			Bucket:     config.ArtifactBucket,
			PublicBase: config.PublicBaseURL,
		})
		if err != nil {
			return b, fmt.Errorf("failed to create MinIO store: %w", err)
		}
		b.Store = st
	default:
		storageClient, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return b, err
		}
		b.Store = store.NewGCSStore(storageClient, config.ArtifactBucket, config.PublicBaseURL)
	}

	switch config.DocumentStore {
	case "postgres":
		repo, err := documents.NewPostgresRepository(ctx, documents.PostgresConfig{DSN: config.PostgresDSN})
		if err != nil {
			return b, fmt.Errorf("failed to create postgres repository: %w", err)
		}
		b.Documents = repo
	case "firestore":
		firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID, config.FirestoreDatabase)
		if err != nil {
			return b, fmt.Errorf("failed to create firestore client: %w", err)
		}
		b.Documents = documents.NewFirestoreRepository(firestoreClient, config.FirestoreCollection)
	}

	b.Locker = lock.Noop{}
	if config.RedisAddr != "" {
		client, err := lock.NewRedisClient(config.RedisAddr, config.RedisPassword)
		if err != nil {
			// Local coalescing still holds; only cross-instance exclusion is lost.
			slog.Warn("Redis unavailable, running without a shared lock.", "error", err, "addr", config.RedisAddr)
		} else {
			b.Locker = lock.NewRedisLocker(client, "thumbnail:")
		}
	}
	return b, nil
}

// PipelineConfig holds the conversion settings of the thumbnail pipeline.
type PipelineConfig struct {
	WorkspaceDir     string
	Tools            pipeline.ToolConfig
	Defaults         pipeline.Options
	ThumbnailPrefix  string
	FetchMaxAttempts int
	JobTimeout       time.Duration
	LockTTL          time.Duration
}

func loadPipelineConfig() PipelineConfig {
	def := pipeline.DefaultOptions()
	tools := pipeline.DefaultToolConfig()
	return PipelineConfig{
		WorkspaceDir: gcp.GetEnv("WORKSPACE_DIR", os.TempDir()),
		Tools: pipeline.ToolConfig{
			ConvertBinary: gcp.GetEnv("CONVERT_BINARY", tools.ConvertBinary),
			SofficeBinary: gcp.GetEnv("SOFFICE_BINARY", tools.SofficeBinary),
			FFmpegBinary:  gcp.GetEnv("FFMPEG_BINARY", tools.FFmpegBinary),
			Timeout:       gcp.GetEnvDuration("CONVERSION_TIMEOUT", tools.Timeout),
		},
		Defaults: pipeline.Options{
			Width:      gcp.GetEnvInt("THUMBNAIL_WIDTH", def.Width),
			Height:     gcp.GetEnvInt("THUMBNAIL_HEIGHT", def.Height),
			Quality:    gcp.GetEnvInt("THUMBNAIL_QUALITY", def.Quality),
			Density:    gcp.GetEnvInt("THUMBNAIL_DENSITY", def.Density),
			Background: gcp.GetEnv("THUMBNAIL_BACKGROUND", def.Background),
		},
		ThumbnailPrefix:  gcp.GetEnv("THUMBNAIL_PREFIX", "thumbnails/"),
		FetchMaxAttempts: gcp.GetEnvInt("FETCH_MAX_ATTEMPTS", 1),
		JobTimeout:       gcp.GetEnvDuration("JOB_TIMEOUT", 5*time.Minute),
		LockTTL:          gcp.GetEnvDuration("LOCK_TTL", 0),
	}
}

// newOrchestrator wires the pipeline stages around one artifact store.
func newOrchestrator(config PipelineConfig, b Backends) *pipeline.Orchestrator {
	logger := slog.Default()
	converter := b.Converter
	if converter == nil {
		converter = pipeline.NewCommandConverter(config.Tools, logger)
	}
	var recorder pipeline.Recorder
	if b.Documents != nil {
		recorder = b.Documents
	}
	return pipeline.NewOrchestrator(
		pipeline.OrchestratorConfig{Defaults: config.Defaults, JobTimeout: config.JobTimeout, LockTTL: config.LockTTL},
		pipeline.NewFetcher(b.Store, pipeline.RetryPolicy{MaxAttempts: config.FetchMaxAttempts}, logger),
		pipeline.NewWorkspaceManager(config.WorkspaceDir, logger),
		converter,
		pipeline.NewPublisher(b.Store, logger),
		recorder,
		b.Locker,
		logger,
	)
}

// ThumbnailKey is where the preview of a document is published.
func ThumbnailKey(prefix, documentID string) string {
	return prefix + documentID + ".jpg"
}

// pipelineRequest turns an HTTP payload into a pipeline request.
func pipelineRequest(req *models.GenerateThumbnailRequest) pipeline.Request {
	return pipeline.Request{
		DocumentID:       req.DocumentID,
		SourceKey:        req.StoragePath,
		DerivedKey:       req.DerivedStoragePath,
		OriginalFilename: req.OriginalFilename,
		MimeType:         req.MimeType,
		Options:          pipeline.OptionsFromPayload(req.Options),
	}
}
