package lgr

import (
	"bytes"
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
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "level %q", tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitConsoleAndFile(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "maskflow.log")

	opts := DefaultOptions()
	opts.Console = &console
	opts.File = path
	opts.Level = "warn"

	closer, err := Init(opts)
	require.NoError(t, err)

	Logger.Info("dropped")
	Logger.Warn("tracking failed", slog.Int("spots", 3))
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "dropped")
	assert.Contains(t, console.String(), "tracking failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "tracking failed", rec["msg"])
	assert.Equal(t, float64(3), rec["spots"])
}

func TestFanoutWithAttrs(t *testing.T) {
	var a, b bytes.Buffer

	h := fanout{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}

	log := slog.New(h).With(slog.String("stage", "detect"))
	log.Info("done")

	assert.Contains(t, a.String(), "stage=detect")
	assert.Contains(t, b.String(), `"stage":"detect"`)
}
