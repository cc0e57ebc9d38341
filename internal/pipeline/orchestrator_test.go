package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj<<>>endobj\ntrailer<<>>\n%%EOF\n")

func TestGenerateMissingSource(t *testing.T) {
	// given
	rig := newTestRig(t, &fakeConverter{}, nil)

	// when
	res, err := rig.orch.Generate(context.Background(), Request{
		DocumentID:       "doc-a",
		SourceKey:        "docs/a.pdf",
		DerivedKey:       "thumbnails/a.jpg",
		OriginalFilename: "a.pdf",
	})

	// then
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.False(t, Retryable(err))
	require.NotNil(t, res)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateFetching, res.FailedIn)
	assert.Empty(t, rig.recorder.thumbnail("doc-a"))
	assert.NotEmpty(t, rig.recorder.failure("doc-a"))
	assert.Zero(t, rig.conv.calls.Load())
	requireWorkspaceClean(t, rig)
}

func TestGenerateValidPDF(t *testing.T) {
	// given
	rig := newTestRig(t, &fakeConverter{}, nil)
	rig.store.Put("docs/b.pdf", samplePDF)

	// when
	res, err := rig.orch.Generate(context.Background(), Request{
		DocumentID:       "doc-b",
		SourceKey:        "docs/b.pdf",
		DerivedKey:       "thumbnails/b.jpg",
		OriginalFilename: "Lecture 1.pdf",
		Options:          Options{Width: 800, Height: 600},
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.NotEmpty(t, res.JobID)
	data, err := rig.store.Download(context.Background(), "thumbnails/b.jpg")
	require.NoError(t, err)
	assert.NotZero(t, len(data))
	assert.Contains(t, string(data), "800x600")
	assert.Equal(t, "image/jpeg", rig.store.ContentType("thumbnails/b.jpg"))
	assert.Equal(t, "thumbnails/b.jpg", rig.recorder.thumbnail("doc-b"))
	requireWorkspaceClean(t, rig)
}

func TestGenerateWalksStatesInOrder(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, nil)
	rig.store.Put("docs/c.pdf", samplePDF)
	var states []State
	rig.orch.onState = func(_ string, s State) { states = append(states, s) }

	_, err := rig.orch.Generate(context.Background(), Request{SourceKey: "docs/c.pdf", DerivedKey: "thumbnails/c.jpg", OriginalFilename: "c.pdf"})

	require.NoError(t, err)
	assert.Equal(t, []State{StateFetching, StateConverting, StatePublishing, StateRecording, StateDone}, states)
}

func TestGenerateIsIdempotent(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, nil)
	rig.store.Put("docs/d.pdf", samplePDF)
	req := Request{DocumentID: "doc-d", SourceKey: "docs/d.pdf", DerivedKey: "thumbnails/d.jpg", OriginalFilename: "d.pdf"}

	_, err := rig.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	first, err := rig.store.Download(context.Background(), req.DerivedKey)
	require.NoError(t, err)

	_, err = rig.orch.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := rig.store.Download(context.Background(), req.DerivedKey)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, rig.conv.calls.Load())
	requireWorkspaceClean(t, rig)
}

func TestGenerateCleansUpOnEveryFailure(t *testing.T) {
	cases := map[string]struct {
		conv      *fakeConverter
		uploadErr error
		setErr    error
		kind      Kind
		failedIn  State
	}{
		"conversion error": {conv: &fakeConverter{err: errors.New("gs: exit status 1")}, kind: KindConversion, failedIn: StateConverting},
		"empty output":     {conv: &fakeConverter{empty: true}, kind: KindConversion, failedIn: StateConverting},
		"panic":            {conv: &fakeConverter{panic: true}, kind: KindConversion, failedIn: StateConverting},
		"upload error":     {conv: &fakeConverter{}, uploadErr: errors.New("503 backend unavailable"), kind: KindUpload, failedIn: StatePublishing},
		"record error":     {conv: &fakeConverter{}, setErr: errors.New("deadline exceeded"), kind: KindTransientIO, failedIn: StateRecording},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rig := newTestRig(t, tc.conv, nil)
			rig.store.Put("docs/e.pdf", samplePDF)
			rig.store.FailUpload = tc.uploadErr
			rig.recorder.setErr = tc.setErr

			res, err := rig.orch.Generate(context.Background(), Request{
				DocumentID: "doc-e", SourceKey: "docs/e.pdf", DerivedKey: "thumbnails/e.jpg", OriginalFilename: "e.pdf",
			})

			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, StateFailed, res.State)
			assert.Equal(t, tc.failedIn, res.FailedIn)
			assert.Empty(t, rig.recorder.thumbnail("doc-e"))
			assert.NotEmpty(t, rig.recorder.failure("doc-e"))
			requireWorkspaceClean(t, rig)
		})
	}
}

func TestGenerateTransientStoreFailure(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, nil)
	rig.store.FailDownload = errors.New("dial tcp: i/o timeout")

	_, err := rig.orch.Generate(context.Background(), Request{SourceKey: "docs/f.pdf", DerivedKey: "thumbnails/f.jpg", OriginalFilename: "f.pdf"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransientIO))
	assert.True(t, Retryable(err))
	requireWorkspaceClean(t, rig)
}

func TestGenerateRejectsInvalidRequests(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, nil)

	_, err := rig.orch.Generate(context.Background(), Request{DerivedKey: "thumbnails/x.jpg"})
	assert.Equal(t, KindInvalid, KindOf(err))

	_, err = rig.orch.Generate(context.Background(), Request{SourceKey: "docs/x.pdf", DerivedKey: "docs/x.pdf"})
	assert.Equal(t, KindInvalid, KindOf(err))

	rig.store.Put("docs/x.pdf", samplePDF)
	_, err = rig.orch.Generate(context.Background(), Request{
		SourceKey: "docs/x.pdf", DerivedKey: "thumbnails/x.jpg", Options: Options{Width: 100000},
	})
	assert.Equal(t, KindInvalid, KindOf(err))
	assert.Zero(t, rig.conv.calls.Load())
	requireWorkspaceClean(t, rig)
}

func TestGenerateCoalescesConcurrentRequestsForSameDocument(t *testing.T) {
	// given
	conv := &fakeConverter{entered: make(chan struct{}, 2), proceed: make(chan struct{})}
	rig := newTestRig(t, conv, nil)
	rig.store.Put("docs/g.pdf", samplePDF)
	req := Request{DocumentID: "doc-g", SourceKey: "docs/g.pdf", DerivedKey: "thumbnails/g.jpg", OriginalFilename: "g.pdf"}

	// when
	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = rig.orch.Generate(context.Background(), req)
	}()
	<-conv.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = rig.orch.Generate(context.Background(), req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(conv.proceed)
	wg.Wait()

	// then
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.EqualValues(t, 1, conv.calls.Load())
	assert.Equal(t, results[0].JobID, results[1].JobID)
	assert.True(t, results[1].Shared)
	requireWorkspaceClean(t, rig)
}

func TestGenerateRunsDifferentDocumentsConcurrently(t *testing.T) {
	conv := &fakeConverter{entered: make(chan struct{}, 2), proceed: make(chan struct{})}
	rig := newTestRig(t, conv, nil)
	rig.store.Put("docs/h1.pdf", samplePDF)
	rig.store.Put("docs/h2.pdf", []byte("%PDF-1.7 other"))

	var wg sync.WaitGroup
	for _, id := range []string{"h1", "h2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rig.orch.Generate(context.Background(), Request{
				DocumentID: "doc-" + id, SourceKey: "docs/" + id + ".pdf", DerivedKey: "thumbnails/" + id + ".jpg", OriginalFilename: id + ".pdf",
			})
			assert.NoError(t, err)
		}()
	}
	<-conv.entered
	<-conv.entered
	close(conv.proceed)
	wg.Wait()

	assert.EqualValues(t, 2, conv.maxSeen.Load())
	requireWorkspaceClean(t, rig)
}

func TestGenerateRejectedWhenLockedElsewhere(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, lockedLocker{})
	rig.store.Put("docs/i.pdf", samplePDF)

	_, err := rig.orch.Generate(context.Background(), Request{DocumentID: "doc-i", SourceKey: "docs/i.pdf", DerivedKey: "thumbnails/i.jpg", OriginalFilename: "i.pdf"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInFlight))
	assert.Zero(t, rig.conv.calls.Load())
	assert.Empty(t, rig.recorder.failure("doc-i"), "in-flight rejection must not mark the document failed")
	requireWorkspaceClean(t, rig)
}

func TestGenerateContinuesWhenLockBackendIsDown(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, brokenLocker{})
	rig.store.Put("docs/j.pdf", samplePDF)

	res, err := rig.orch.Generate(context.Background(), Request{SourceKey: "docs/j.pdf", DerivedKey: "thumbnails/j.jpg", OriginalFilename: "j.pdf"})

	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
}

func TestGenerateFinishesAndCleansUpAfterCallerAborts(t *testing.T) {
	// given
	conv := &fakeConverter{entered: make(chan struct{}, 1), proceed: make(chan struct{})}
	rig := newTestRig(t, conv, nil)
	rig.store.Put("docs/k.pdf", samplePDF)
	ctx, cancel := context.WithCancel(context.Background())

	// when
	done := make(chan error, 1)
	go func() {
		_, err := rig.orch.Generate(ctx, Request{DocumentID: "doc-k", SourceKey: "docs/k.pdf", DerivedKey: "thumbnails/k.jpg", OriginalFilename: "k.pdf"})
		done <- err
	}()
	<-conv.entered
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	close(conv.proceed)

	// then
	require.Eventually(t, func() bool {
		return rig.recorder.thumbnail("doc-k") == "thumbnails/k.jpg"
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return rig.orch.workspaces.Active() == 0
	}, 2*time.Second, 10*time.Millisecond)
	requireWorkspaceClean(t, rig)
}

func TestGenerateMany(t *testing.T) {
	rig := newTestRig(t, &fakeConverter{}, nil)
	rig.store.Put("docs/m1.pdf", samplePDF)
	rig.store.Put("docs/m3.pdf", samplePDF)
	reqs := []Request{
		{DocumentID: "m1", SourceKey: "docs/m1.pdf", DerivedKey: "thumbnails/m1.jpg", OriginalFilename: "m1.pdf"},
		{DocumentID: "m2", SourceKey: "docs/m2.pdf", DerivedKey: "thumbnails/m2.jpg", OriginalFilename: "m2.pdf"},
		{DocumentID: "m3", SourceKey: "docs/m3.pdf", DerivedKey: "thumbnails/m3.jpg", OriginalFilename: "m3.pdf"},
	}

	items := rig.orch.GenerateMany(context.Background(), reqs, 2)

	require.Len(t, items, 3)
	assert.NoError(t, items[0].Err)
	assert.True(t, errors.Is(items[1].Err, ErrNotFound))
	assert.NoError(t, items[2].Err)
	assert.Equal(t, "m2", items[1].Request.DocumentID)
	assert.Equal(t, "thumbnails/m3.jpg", rig.recorder.thumbnail("m3"))
	requireWorkspaceClean(t, rig)
}
