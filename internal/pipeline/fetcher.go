package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/store"
)

// RetryPolicy controls how often a transient fetch failure is retried. The zero value makes a
// single attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Fetcher reads source bytes from the artifact store.
type Fetcher struct {
	store  store.ArtifactStore
	retry  RetryPolicy
	logger *slog.Logger
}

func NewFetcher(s store.ArtifactStore, retry RetryPolicy, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = time.Second
	}
	return &Fetcher{store: s, retry: retry, logger: logger}
}

// Fetch downloads key. A missing object is reported as KindNotFound and never retried; any
// other store failure is KindTransientIO.
func (f *Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	backoff := f.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		data, err := f.store.Download(ctx, key)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "fetch", key, err)
		}
		lastErr = err
		if attempt == f.retry.MaxAttempts {
			break
		}

		f.logger.Warn("Fetch failed, will retry.",
			"storagePath", key,
			"attempt", attempt,
			"maxAttempts", f.retry.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, newError(KindTransientIO, "fetch", key, ctx.Err())
		}
	}
	return nil, newError(KindTransientIO, "fetch", key, lastErr)
}
