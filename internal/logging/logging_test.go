package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMirrorsRecordsToFile(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	file := ScopeFile(filepath.Join(t.TempDir(), "logs"), "ai")

	logger, closeFn, err := New(Options{Console: &console, NoColor: true, File: file})
	require.NoError(t, err)

	logger.With("registry", "ai").Info("Progress", "checked", 100)
	logger.Debug("hidden at info level")
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "Progress")
	assert.Contains(t, console.String(), "registry=ai")
	assert.NotContains(t, console.String(), "hidden")

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=Progress")
	assert.Contains(t, string(b), "registry=ai")
	assert.Contains(t, string(b), "checked=100")
	assert.NotContains(t, string(b), "hidden")
	assert.Equal(t, "check_ai.log", filepath.Base(file))
}

func TestNewAppendsAcrossRuns(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "check_ai.log")
	for _, msg := range []string{"first", "second"} {
		logger, closeFn, err := New(Options{Console: &bytes.Buffer{}, File: file})
		require.NoError(t, err)
		logger.Info(msg)
		require.NoError(t, closeFn())
	}

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=first")
	assert.Contains(t, string(b), "msg=second")
}

func TestDebugLevel(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	logger, closeFn, err := New(Options{Console: &console, NoColor: true, Debug: true})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("lookup unresolved", "domain", "ijkl.ai")
	assert.Contains(t, console.String(), "lookup unresolved")
	assert.Equal(t, slog.LevelDebug, Options{Debug: true}.Level())
}

func TestTeeGroupsAndLevels(t *testing.T) {
	t.Parallel()

	var info, debug bytes.Buffer
	tee := NewTee(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(tee).WithGroup("run")

	logger.Debug("only debug", "n", 1)
	logger.Info("both", "n", 2)

	assert.NotContains(t, info.String(), "only debug")
	assert.Contains(t, info.String(), "run.n=2")
	assert.Contains(t, debug.String(), "run.n=1")
	assert.Contains(t, debug.String(), "run.n=2")
}
