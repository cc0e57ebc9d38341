package documents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/Lllllllleong/documentpreview/internal/models"
)

// Schema creates the documents table used by PostgresRepository.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                UUID PRIMARY KEY,
	original_filename TEXT NOT NULL DEFAULT '',
	mime_type         TEXT NOT NULL DEFAULT '',
	storage_path      TEXT NOT NULL,
	thumbnail_path    TEXT NOT NULL DEFAULT '',
	thumbnail_status  TEXT NOT NULL DEFAULT 'PENDING',
	thumbnail_error   TEXT NOT NULL DEFAULT '',
	size              BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_missing_thumbnail
	ON documents (created_at) WHERE thumbnail_path = '';
`

// PostgresConfig mirrors the connection settings of the service's other stores.
type PostgresConfig struct {
	DSN     string
	MaxPool int
}

// PostgresRepository stores Documents in a single table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens a pool, checks connectivity and applies Schema.
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxPool <= 0 {
		cfg.MaxPool = 4
	}
	db.SetMaxOpenConns(cfg.MaxPool)
	db.SetMaxIdleConns(max(cfg.MaxPool/2, 1))
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	prepare(&doc, time.Now())

	query := `
		INSERT INTO documents (id, original_filename, mime_type, storage_path, thumbnail_path,
		                       thumbnail_status, thumbnail_error, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.OriginalFilename, doc.MimeType, doc.StoragePath, doc.ThumbnailPath,
		doc.ThumbnailStatus, doc.ThumbnailError, doc.Size, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Duplicate delivery: hand back what is already stored.
		return r.Get(ctx, doc.ID)
	}
	return &doc, nil
}

const selectColumns = `
	SELECT id, original_filename, mime_type, storage_path, thumbnail_path,
	       thumbnail_status, thumbnail_error, size, created_at, updated_at
	FROM documents
`

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	doc, err := scanDocument(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) SetThumbnail(ctx context.Context, id, derivedKey string) error {
	query := `
		UPDATE documents
		SET thumbnail_path = $1, thumbnail_status = $2, thumbnail_error = '', updated_at = NOW()
		WHERE id = $3
	`
	return r.exec(ctx, "set thumbnail", id, query, derivedKey, models.ThumbnailReady, id)
}

func (r *PostgresRepository) MarkThumbnailFailed(ctx context.Context, id, reason string) error {
	query := `
		UPDATE documents
		SET thumbnail_status = $1, thumbnail_error = $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.exec(ctx, "mark thumbnail failed", id, query, models.ThumbnailFailed, reason, id)
}

func (r *PostgresRepository) ListWithoutThumbnail(ctx context.Context, limit int) ([]*models.Document, error) {
	query := selectColumns + ` WHERE thumbnail_path = '' ORDER BY created_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents without thumbnail: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.OriginalFilename,
		&doc.MimeType,
		&doc.StoragePath,
		&doc.ThumbnailPath,
		&doc.ThumbnailStatus,
		&doc.ThumbnailError,
		&doc.Size,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
