package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/lock"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/store"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConverter writes a digest of the input and options, so equal inputs give equal bytes.
type fakeConverter struct {
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32

	entered chan struct{}
	proceed chan struct{}

	err   error
	empty bool
	panic bool

	inputsMu sync.Mutex
	inputs   []string
}

func (c *fakeConverter) inputPaths() []string {
	c.inputsMu.Lock()
	defer c.inputsMu.Unlock()
	return append([]string(nil), c.inputs...)
}

func (c *fakeConverter) Generate(ctx context.Context, in, out string, opts Options) error {
	c.calls.Add(1)
	c.inputsMu.Lock()
	c.inputs = append(c.inputs, in)
	c.inputsMu.Unlock()
	n := c.running.Add(1)
	defer c.running.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.proceed != nil {
		<-c.proceed
	}
	if c.panic {
		panic("converter exploded")
	}
	if c.err != nil {
		return c.err
	}
	if c.empty {
		return os.WriteFile(out, nil, 0o600)
	}

	src, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(src)
	return os.WriteFile(out, []byte(fmt.Sprintf("JPEG %x %dx%d q%d d%d %s", sum, opts.Width, opts.Height, opts.Quality, opts.Density, opts.Background)), 0o600)
}

// fakeRecorder knows every document id except those listed in missing.
type fakeRecorder struct {
	mu         sync.Mutex
	thumbnails map[string]string
	failures   map[string]string
	missing    map[string]bool
	setErr     error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{thumbnails: map[string]string{}, failures: map[string]string{}, missing: map[string]bool{}}
}

func (r *fakeRecorder) Get(_ context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missing[id] {
		return nil, documents.ErrNotFound
	}
	return &models.Document{ID: id}, nil
}

func (r *fakeRecorder) SetThumbnail(_ context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	r.thumbnails[id] = key
	return nil
}

func (r *fakeRecorder) MarkThumbnailFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[id] = reason
	return nil
}

func (r *fakeRecorder) thumbnail(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thumbnails[id]
}

func (r *fakeRecorder) failure(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[id]
}

type lockedLocker struct{}

func (lockedLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, lock.ErrLocked
}

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("dial tcp: connection refused")
}

type testRig struct {
	orch     *Orchestrator
	store    *store.MemoryStore
	recorder *fakeRecorder
	conv     *fakeConverter
	baseDir  string
}

func newTestRig(t *testing.T, conv *fakeConverter, locker lock.Locker) *testRig {
	t.Helper()
	logger := discardLogger()
	st := store.NewMemoryStore("https://files.example.com")
	rec := newFakeRecorder()
	base := t.TempDir()
	orch := NewOrchestrator(
		OrchestratorConfig{JobTimeout: 10 * time.Second},
		NewFetcher(st, RetryPolicy{}, logger),
		NewWorkspaceManager(base, logger),
		conv,
		NewPublisher(st, logger),
		rec,
		locker,
		logger,
	)
	return &testRig{orch: orch, store: st, recorder: rec, conv: conv, baseDir: base}
}

// requireWorkspaceClean asserts that no job left anything behind.
func requireWorkspaceClean(t *testing.T, rig *testRig) {
	t.Helper()
	entries, err := os.ReadDir(rig.baseDir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp workspace not cleaned up")
	require.Zero(t, rig.orch.workspaces.Active())
}
