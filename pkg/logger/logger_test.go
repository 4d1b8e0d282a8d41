package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwright.log")
	log := New(Config{Level: "debug", File: path})

	log.With("job_id", "j-1").Infow("job started", "kind", "text_generation")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"job_id":"j-1"`)
	require.Contains(t, string(data), "job started")
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	log := New(Config{Level: "warn", File: path})

	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")
}
