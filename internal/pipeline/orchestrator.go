package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/format"
	"github.com/Lllllllleong/documentpreview/internal/lock"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// State is a step of the thumbnail job state machine.
type State string

const (
	StateIdle       State = "IDLE"
	StateFetching   State = "FETCHING"
	StateConverting State = "CONVERTING"
	StatePublishing State = "PUBLISHING"
	StateRecording  State = "RECORDING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Recorder stores the outcome of a job on the document entity. Get is consulted before any
// work starts so that a job for an unknown document publishes nothing.
type Recorder interface {
	Get(ctx context.Context, documentID string) (*models.Document, error)
	SetThumbnail(ctx context.Context, documentID, derivedKey string) error
	MarkThumbnailFailed(ctx context.Context, documentID, reason string) error
}

// Request asks for one derivative of one source.
type Request struct {
	DocumentID       string
	SourceKey        string
	DerivedKey       string
	OriginalFilename string
	// MimeType is the declared content type of the source. It picks the converter route when
	// OriginalFilename carries no usable extension.
	MimeType string
	Options  Options
}

// Job is the ephemeral record of one run.
type Job struct {
	ID      string
	Request Request
	Options Options
	Space   *Workspace
}

// Result describes how a job ended.
type Result struct {
	JobID      string
	DocumentID string
	DerivedKey string
	State      State
	// FailedIn is the state that was active when the job failed.
	FailedIn State
	Bytes    int
	Duration time.Duration
	// Shared is set when more than one request received this result.
	Shared bool
}

// OrchestratorConfig carries tunables of the orchestrator.
type OrchestratorConfig struct {
	Defaults   Options
	JobTimeout time.Duration
	LockTTL    time.Duration
}

// Orchestrator sequences fetch, convert, publish and record for one document at a time.
//
// Concurrent requests for the same document inside one process are coalesced: the first one
// starts the job, later ones wait for it and receive its result. Across processes the Locker
// rejects a second job with KindInFlight.
type Orchestrator struct {
	fetcher    *Fetcher
	workspaces *WorkspaceManager
	converter  Converter
	publisher  *Publisher
	recorder   Recorder
	locker     lock.Locker
	cfg        OrchestratorConfig
	logger     *slog.Logger

	flights singleflight.Group
	// onState observes every transition; used by tests.
	onState func(jobID string, s State)
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	fetcher *Fetcher,
	workspaces *WorkspaceManager,
	converter Converter,
	publisher *Publisher,
	recorder Recorder,
	locker lock.Locker,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Defaults == (Options{}) {
		cfg.Defaults = DefaultOptions()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.JobTimeout + time.Minute
	}
	if locker == nil {
		locker = lock.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:    fetcher,
		workspaces: workspaces,
		converter:  converter,
		publisher:  publisher,
		recorder:   recorder,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
	}
}

// Generate runs, or joins, the job for req. The job itself is detached from ctx: a caller that
// goes away stops waiting, but the job still finishes and releases its workspace.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return &Result{DocumentID: req.DocumentID, DerivedKey: req.DerivedKey, State: StateFailed, FailedIn: StateIdle}, err
	}

	ch := o.flights.DoChan(flightKey(req), func() (any, error) {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.JobTimeout)
		defer cancel()
		return o.run(jobCtx, req)
	})

	select {
	case res := <-ch:
		r, _ := res.Val.(*Result)
		if r == nil {
			return nil, res.Err
		}
		out := *r
		out.Shared = res.Shared
		return &out, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func flightKey(req Request) string {
	if req.DocumentID != "" {
		return "doc:" + req.DocumentID
	}
	return "key:" + req.DerivedKey
}

func validateRequest(req Request) error {
	switch {
	case req.SourceKey == "":
		return invalidf("source storage path is required")
	case req.DerivedKey == "":
		return invalidf("derived storage path is required")
	case req.SourceKey == req.DerivedKey:
		return invalidf("derived storage path must differ from the source")
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) (result *Result, err error) {
	job := &Job{ID: uuid.NewString(), Request: req, Options: req.Options.WithDefaults(o.cfg.Defaults)}
	logCtx := o.logger.With(
		"jobId", job.ID,
		"documentId", req.DocumentID,
		"storagePath", req.SourceKey,
		"derivedStoragePath", req.DerivedKey,
	)
	result = &Result{JobID: job.ID, DocumentID: req.DocumentID, DerivedKey: req.DerivedKey, State: StateIdle}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	fail := func(cause error) (*Result, error) {
		return o.handleError(ctx, logCtx, result, cause)
	}
	if err := job.Options.Validate(); err != nil {
		return fail(err)
	}

	if err := o.checkDocument(ctx, req); err != nil {
		return fail(err)
	}

	release, err := o.locker.Acquire(ctx, flightKey(req), o.cfg.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return fail(newError(KindInFlight, "lock", req.DerivedKey, err))
	}
	if err != nil {
		// A broken lock backend must not stop thumbnails; local coalescing still holds.
		logCtx.Warn("Shared lock unavailable, continuing without it.", "error", err)
		release = func() {}
	}
	defer release()

	job.Space, err = o.workspaces.Acquire(job.ID, "source"+format.InputExtension(req.MimeType, req.OriginalFilename), filepath.Ext(req.DerivedKey))
	if err != nil {
		return fail(newError(KindTransientIO, "workspace", job.ID, err))
	}
	defer o.workspaces.Release(job.ID)
	defer func() {
		if r := recover(); r != nil {
			result, err = fail(newError(KindConversion, "panic", req.SourceKey, fmt.Errorf("%v", r)))
		}
	}()

	o.transition(job, result, StateFetching)
	data, err := o.fetcher.Fetch(ctx, req.SourceKey)
	if err != nil {
		return fail(err)
	}
	if err := os.WriteFile(job.Space.InputPath, data, 0o600); err != nil {
		return fail(newError(KindTransientIO, "stage", job.Space.InputPath, err))
	}
	logCtx.Info("Source fetched.", "bytes", len(data))

	o.transition(job, result, StateConverting)
	if err := o.converter.Generate(ctx, job.Space.InputPath, job.Space.OutputPath, job.Options); err != nil {
		var perr *Error
		if !errors.As(err, &perr) {
			err = newError(KindConversion, "generate", req.SourceKey, err)
		}
		return fail(err)
	}
	preview, err := os.ReadFile(job.Space.OutputPath)
	if err != nil || len(preview) == 0 {
		if err == nil {
			err = errors.New("converter reported success but the output is empty")
		}
		return fail(newError(KindConversion, "generate", req.SourceKey, err))
	}

	o.transition(job, result, StatePublishing)
	if err := o.publisher.Publish(ctx, preview, req.DerivedKey); err != nil {
		return fail(err)
	}
	result.Bytes = len(preview)

	o.transition(job, result, StateRecording)
	if req.DocumentID != "" && o.recorder != nil {
		if err := o.recorder.SetThumbnail(ctx, req.DocumentID, req.DerivedKey); err != nil {
			return fail(recordError("record", req.DocumentID, err))
		}
	}

	o.transition(job, result, StateDone)
	logCtx.Info("Thumbnail generated.", "bytes", result.Bytes, "duration", time.Since(start).String())
	return result, nil
}

func (o *Orchestrator) checkDocument(ctx context.Context, req Request) error {
	if req.DocumentID == "" || o.recorder == nil {
		return nil
	}
	if _, err := o.recorder.Get(ctx, req.DocumentID); err != nil {
		return recordError("lookup", req.DocumentID, err)
	}
	return nil
}

func recordError(op, documentID string, err error) error {
	if errors.Is(err, documents.ErrNotFound) {
		return newError(KindMissingDocument, op, documentID, err)
	}
	return newError(KindTransientIO, op, documentID, err)
}

func (o *Orchestrator) transition(job *Job, result *Result, s State) {
	result.State = s
	if o.onState != nil {
		o.onState(job.ID, s)
	}
}

// handleError logs the failure with job context, marks the document FAILED and leaves its
// derived key untouched.
func (o *Orchestrator) handleError(ctx context.Context, logCtx *slog.Logger, result *Result, cause error) (*Result, error) {
	result.FailedIn = result.State
	result.State = StateFailed

	attrs := []any{"error", cause, "kind", KindOf(cause).String(), "failedIn", string(result.FailedIn)}
	var perr *Error
	if errors.As(cause, &perr) && perr.Diagnostics != "" {
		attrs = append(attrs, "diagnostics", perr.Diagnostics)
	}
	logCtx.Error("Thumbnail job failed.", attrs...)

	if result.DocumentID != "" && o.recorder != nil && recordsFailure(KindOf(cause)) {
		if err := o.recorder.MarkThumbnailFailed(ctx, result.DocumentID, cause.Error()); err != nil {
			logCtx.Error("CRITICAL: Failed to record thumbnail failure on document.", "updateError", err)
		}
	}
	return result, cause
}

// recordsFailure reports whether a failure of kind k belongs on the document. A job that lost
// the lock is not a failure, and a missing document has nowhere to record one.
func recordsFailure(k Kind) bool {
	return k != KindInFlight && k != KindMissingDocument
}
