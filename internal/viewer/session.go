package viewer

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/format"
)

var (
	// ErrLoadTimeout is recorded when an attempt outlives Config.LoadTimeout.
	ErrLoadTimeout = errors.New("renderer did not load in time")
	ErrClosed      = errors.New("viewer session closed")
	ErrNotRendered = errors.New("nothing is rendered")
	ErrNoControls  = errors.New("renderer has no presentation controls")
)

// Phase is the session's position in its lifecycle.
type Phase string

const (
	PhaseSelecting    Phase = "SELECTING"
	PhaseLoading      Phase = "LOADING"
	PhaseRendered     Phase = "RENDERED"
	PhaseUnrenderable Phase = "UNRENDERABLE"
	PhaseClosed       Phase = "CLOSED"
)

// Terminal reports whether no further load attempt can happen.
func (p Phase) Terminal() bool {
	return p == PhaseRendered || p == PhaseUnrenderable || p == PhaseClosed
}

// Config bounds a session.
type Config struct {
	// MaxAttempts is how many times a renderer is tried before escalating.
	MaxAttempts int
	LoadTimeout time.Duration
	// OnChange, if set, receives a snapshot after every transition. It runs outside the
	// session lock and may call back into the session.
	OnChange func(Snapshot)
	Logger   *slog.Logger
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 1, LoadTimeout: 15 * time.Second}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Attempt is one load of one renderer. Its Token must accompany the load outcome.
type Attempt struct {
	Token    uint64   `json:"token"`
	Renderer Renderer `json:"renderer"`
	URL      string   `json:"url"`
	Number   int      `json:"number"`
}

// Failure records why an attempt did not render.
type Failure struct {
	Renderer Renderer
	Number   int
	Err      error
}

// Session is one attempt to display one file. All methods are safe for concurrent use;
// outcomes for superseded attempts are ignored.
type Session struct {
	mu sync.Mutex

	cfg     Config
	target  Target
	variant format.Variant
	chain   []Renderer

	phase    Phase
	idx      int
	attempts int
	token    uint64
	current  Attempt
	timer    *time.Timer
	failures []Failure
	pres     Presentation
	logCtx   *slog.Logger
}

// NewSession classifies the target and prepares its renderer chain. Nothing loads until Start.
func NewSession(target Target, cfg Config) *Session {
	cfg = cfg.withDefaults()
	variant := Classify(target)
	return &Session{
		cfg:     cfg,
		target:  target,
		variant: variant,
		chain:   Chain(variant),
		phase:   PhaseSelecting,
		logCtx:  cfg.Logger.With("title", target.Title, "variant", variant.String()),
	}
}

// Start begins the first attempt. It returns false when there is nothing to load, either
// because the chain is empty (the session is now Unrenderable) or because it already started.
func (s *Session) Start() (Attempt, bool) {
	s.mu.Lock()
	if s.phase != PhaseSelecting {
		s.mu.Unlock()
		return Attempt{}, false
	}
	s.advanceLocked()
	att, ok := s.currentLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return att, ok
}

// Current returns the attempt that is loading, if any.
func (s *Session) Current() (Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Loaded marks the attempt rendered. It returns false for a stale token.
func (s *Session) Loaded(token uint64) bool {
	s.mu.Lock()
	if !s.liveLocked(token) {
		s.mu.Unlock()
		return false
	}
	s.stopTimerLocked()
	s.phase = PhaseRendered
	s.pres = Presentation{Page: 1, Zoom: 1}
	s.logCtx.Debug("Renderer loaded.", "renderer", s.current.Renderer.String(), "attempt", s.current.Number)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Failed records a load failure and moves to the next attempt, the next renderer, or
// Unrenderable. It returns false for a stale token.
func (s *Session) Failed(token uint64, err error) bool {
	s.mu.Lock()
	if !s.liveLocked(token) {
		s.mu.Unlock()
		return false
	}
	s.stopTimerLocked()
	if err == nil {
		err = errors.New("load failed")
	}
	s.failures = append(s.failures, Failure{Renderer: s.current.Renderer, Number: s.current.Number, Err: err})
	s.logCtx.Info("Renderer failed to load.", "renderer", s.current.Renderer.String(), "attempt", s.current.Number, "error", err)

	if s.attempts >= s.cfg.MaxAttempts {
		s.idx++
		s.attempts = 0
	}
	s.advanceLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Close tears the session down. Outcomes that arrive afterwards are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.phase == PhaseClosed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.token++
	s.phase = PhaseClosed
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// advanceLocked starts an attempt of chain[idx], or ends in Unrenderable past the end of the chain.
func (s *Session) advanceLocked() {
	s.token++
	if s.idx >= len(s.chain) {
		s.phase = PhaseUnrenderable
		s.current = Attempt{}
		s.logCtx.Warn("No renderer could display the file; offering download.", "failures", len(s.failures))
		return
	}

	s.attempts++
	r := s.chain[s.idx]
	s.phase = PhaseLoading
	s.current = Attempt{Token: s.token, Renderer: r, URL: r.URL(s.target.FileURL), Number: s.attempts}

	token := s.token
	s.timer = time.AfterFunc(s.cfg.LoadTimeout, func() {
		s.Failed(token, ErrLoadTimeout)
	})
}

func (s *Session) liveLocked(token uint64) bool {
	return s.phase == PhaseLoading && token == s.token
}

func (s *Session) currentLocked() (Attempt, bool) {
	if s.phase != PhaseLoading {
		return Attempt{}, false
	}
	return s.current, true
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(snap)
	}
}
