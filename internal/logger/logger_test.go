package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/h2mux/internal/config"
)

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]interface{}
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(&buf, config.LogLevelInfo)

	lg.Info("frame sent", LogFields{"stream_id": 3, "length": 128})

	entries := decodeLogLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "frame sent", entries[0]["message"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, float64(3), entries[0]["stream_id"])
	assert.Equal(t, float64(128), entries[0]["length"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter(&buf, config.LogLevelWarning)

	lg.Debug("dropped", nil)
	lg.Info("dropped", nil)
	lg.Warn("kept warn", nil)
	lg.Error("kept error", nil)

	entries := decodeLogLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "kept warn", entries[0]["message"])
	assert.Equal(t, "kept error", entries[1]["message"])
}

func TestDebugEnabledTracksLevel(t *testing.T) {
	assert.True(t, NewWithWriter(&bytes.Buffer{}, config.LogLevelDebug).DebugEnabled())
	assert.False(t, NewWithWriter(&bytes.Buffer{}, config.LogLevelInfo).DebugEnabled())
	assert.False(t, NewNop().DebugEnabled())
}

func TestNewWithFileTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transport.log")
	lg, err := New(&config.LoggingConfig{LogLevel: config.LogLevelInfo, Target: path})
	require.NoError(t, err)

	lg.Info("written to file", nil)
	require.NoError(t, lg.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNopLoggerDiscards(t *testing.T) {
	lg := NewNop()
	lg.Error("nobody hears this", LogFields{"k": "v"})
	assert.NoError(t, lg.Close())
}
