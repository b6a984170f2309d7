package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestDefaultLogPath_UnderOntosearchDir(t *testing.T) {
	assert.Equal(t, "ontosearch.log", filepath.Base(DefaultLogPath()))
	assert.Equal(t, filepath.Join(".ontosearch", "logs"),
		filepath.Join(filepath.Base(filepath.Dir(DefaultLogDir())), filepath.Base(DefaultLogDir())))
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file-only config at debug level
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	// When: logging an event
	logger.Debug("search_completed", slog.String("collection", "fruit"), slog.Int("results", 3))
	cleanup()

	// Then: the file holds one JSON record with the attributes
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "search_completed", rec["msg"])
	assert.Equal(t, "fruit", rec["collection"])
	assert.Equal(t, float64(3), rec["results"])
}

func TestSetup_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	logger.Info("ignored")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored")
	assert.Contains(t, string(data), "kept")
}

func TestSetup_NoOutputs_Discards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("nowhere") })
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer whose file is already at the size limit
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024), 0o644))
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing twice past the limit
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)

	// Then: the old content moved to .1 and the new file holds the write
	info, err := os.Stat(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), info.Size())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(data))
}

func TestRotatingWriter_KeepsMaxFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := make([]byte, 1024*1024)
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "app.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, w.Close())
}
