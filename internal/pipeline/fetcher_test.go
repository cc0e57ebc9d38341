package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first failures downloads with a transient error.
type flakyStore struct {
	*store.MemoryStore
	failures int32
	calls    atomic.Int32
}

func (s *flakyStore) Download(ctx context.Context, key string) ([]byte, error) {
	if s.calls.Add(1) <= s.failures {
		return nil, errors.New("503 service unavailable")
	}
	return s.MemoryStore.Download(ctx, key)
}

func TestFetcherSingleAttemptByDefault(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(""), failures: 1}
	st.Put("docs/a.pdf", samplePDF)
	f := NewFetcher(st, RetryPolicy{}, discardLogger())

	_, err := f.Fetch(context.Background(), "docs/a.pdf")

	require.Error(t, err)
	assert.Equal(t, KindTransientIO, KindOf(err))
	assert.EqualValues(t, 1, st.calls.Load())
}

func TestFetcherRetriesTransientErrors(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(""), failures: 2}
	st.Put("docs/a.pdf", samplePDF)
	f := NewFetcher(st, RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, discardLogger())

	data, err := f.Fetch(context.Background(), "docs/a.pdf")

	require.NoError(t, err)
	assert.Equal(t, samplePDF, data)
	assert.EqualValues(t, 3, st.calls.Load())
}

func TestFetcherNeverRetriesNotFound(t *testing.T) {
	st := store.NewMemoryStore("")
	f := NewFetcher(st, RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond}, discardLogger())

	_, err := f.Fetch(context.Background(), "docs/missing.pdf")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Contains(t, err.Error(), "docs/missing.pdf")
}

func TestFetcherStopsOnCancel(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore(""), failures: 100}
	f := NewFetcher(st, RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := f.Fetch(ctx, "docs/a.pdf")

	require.Error(t, err)
	assert.Equal(t, KindTransientIO, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisherUpserts(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore("")
	p := NewPublisher(st, discardLogger())

	require.NoError(t, p.Publish(ctx, []byte("v1"), "thumbnails/a.png"))
	require.NoError(t, p.Publish(ctx, []byte("v2"), "thumbnails/a.png"))

	data, err := st.Download(ctx, "thumbnails/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
	assert.Equal(t, "image/png", st.ContentType("thumbnails/a.png"))
}

func TestPublisherFailures(t *testing.T) {
	st := store.NewMemoryStore("")
	p := NewPublisher(st, discardLogger())

	err := p.Publish(context.Background(), nil, "thumbnails/a.jpg")
	assert.True(t, errors.Is(err, ErrUpload))

	st.FailUpload = errors.New("403 forbidden")
	err = p.Publish(context.Background(), []byte("x"), "thumbnails/a.jpg")
	assert.True(t, errors.Is(err, ErrUpload))
	assert.False(t, st.Has("thumbnails/a.jpg"))
}

func TestErrorMessage(t *testing.T) {
	err := newError(KindNotFound, "fetch", "docs/a.pdf", store.ErrNotFound)
	assert.Equal(t, "fetch docs/a.pdf: source not found: object not found", err.Error())

	unknown := &Error{Op: "x"}
	assert.Equal(t, "x", unknown.Error())
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
