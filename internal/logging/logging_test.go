package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFallsBackToDiscard(t *testing.T) {
	l := Default(nil)
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))

	given := slog.New(slog.NewTextHandler(os.Stderr, nil))
	assert.Same(t, given, Default(given))
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "termgrid.log")
	l, closer, err := New(Options{File: path, Level: "debug"})
	require.NoError(t, err)

	l.Debug("dispatch planned", "record_id", 7)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "record_id=7"), string(data))
}

func TestNewWithoutFileDiscards(t *testing.T) {
	l, closer, err := New(Options{})
	require.NoError(t, err)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, closer.Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
