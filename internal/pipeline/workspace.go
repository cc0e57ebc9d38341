package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace is the scratch area of one conversion job. Everything a job writes lives under Dir.
type Workspace struct {
	JobID      string
	Dir        string
	InputPath  string
	OutputPath string
}

// WorkspaceManager hands out one private temp directory per job id.
type WorkspaceManager struct {
	baseDir string
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]string
}

// NewWorkspaceManager creates directories under baseDir, or the OS temp dir when empty.
func NewWorkspaceManager(baseDir string, logger *slog.Logger) *WorkspaceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceManager{
		baseDir: baseDir,
		logger:  logger,
		active:  make(map[string]string),
	}
}

// Acquire creates the workspace of jobID. The input file keeps the extension of
// originalFilename because converters pick their decoder from it; outputExt selects the
// raster format and defaults to .jpg.
func (m *WorkspaceManager) Acquire(jobID, originalFilename, outputExt string) (*Workspace, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.active[jobID]; held {
		return nil, fmt.Errorf("workspace for job %s is already acquired", jobID)
	}

	if m.baseDir != "" {
		if err := os.MkdirAll(m.baseDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create workspace base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(m.baseDir, "thumbnail-"+sanitizeComponent(jobID)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	m.active[jobID] = dir

	if outputExt == "" {
		outputExt = ".jpg"
	}
	ws := &Workspace{
		JobID:      jobID,
		Dir:        dir,
		InputPath:  filepath.Join(dir, "source"+strings.ToLower(filepath.Ext(originalFilename))),
		OutputPath: filepath.Join(dir, "preview"+strings.ToLower(outputExt)),
	}
	m.logger.Debug("Created temp directory.", "jobId", jobID, "path", dir)
	return ws, nil
}

// Release removes the workspace of jobID. It never fails: removal problems are logged so they
// cannot mask the job's own outcome. Releasing an unknown or already released job is a no-op.
func (m *WorkspaceManager) Release(jobID string) {
	m.mu.Lock()
	dir, ok := m.active[jobID]
	delete(m.active, jobID)
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := os.RemoveAll(dir); err != nil {
		m.logger.Error("Failed to remove temp directory.", "jobId", jobID, "path", dir, "error", err)
		return
	}
	m.logger.Debug("Removed temp directory.", "jobId", jobID, "path", dir)
}

// Active returns the number of workspaces currently held.
func (m *WorkspaceManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func sanitizeComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, s)
}
