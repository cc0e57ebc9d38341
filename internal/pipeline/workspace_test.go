package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceAcquireRelease(t *testing.T) {
	// given
	base := t.TempDir()
	m := NewWorkspaceManager(base, discardLogger())

	// when
	ws, err := m.Acquire("job-1", "Week 2 Slides.PPTX", ".png")
	require.NoError(t, err)

	// then
	assert.Equal(t, base, filepath.Dir(ws.Dir))
	assert.Equal(t, ws.Dir, filepath.Dir(ws.InputPath))
	assert.Equal(t, ".pptx", filepath.Ext(ws.InputPath))
	assert.Equal(t, ".png", filepath.Ext(ws.OutputPath))
	assert.Equal(t, 1, m.Active())
	require.NoError(t, os.WriteFile(ws.InputPath, []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(ws.Dir, "lo-profile"), 0o700))

	m.Release("job-1")
	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, m.Active())

	// releasing twice is harmless
	m.Release("job-1")
	m.Release("never-acquired")
}

func TestWorkspaceRejectsDuplicateJobID(t *testing.T) {
	m := NewWorkspaceManager(t.TempDir(), discardLogger())
	_, err := m.Acquire("job-1", "a.pdf", "")
	require.NoError(t, err)
	defer m.Release("job-1")

	_, err = m.Acquire("job-1", "a.pdf", "")
	assert.Error(t, err)

	_, err = m.Acquire("", "a.pdf", "")
	assert.Error(t, err)
}

func TestWorkspaceJobsNeverSharePaths(t *testing.T) {
	m := NewWorkspaceManager(t.TempDir(), discardLogger())
	a, err := m.Acquire("job-a", "x.pdf", "")
	require.NoError(t, err)
	b, err := m.Acquire("job-b", "x.pdf", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	assert.NotEqual(t, a.InputPath, b.InputPath)
	assert.Equal(t, ".jpg", filepath.Ext(a.OutputPath))

	m.Release("job-a")
	m.Release("job-b")
}

func TestWorkspaceNoExtension(t *testing.T) {
	base := t.TempDir()
	m := NewWorkspaceManager(base, discardLogger())
	ws, err := m.Acquire("../../etc", "README", "")
	require.NoError(t, err)
	defer m.Release("../../etc")

	assert.Equal(t, "source", filepath.Base(ws.InputPath))
	assert.Equal(t, base, filepath.Dir(ws.Dir))
}
