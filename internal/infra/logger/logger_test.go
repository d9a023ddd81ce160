package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: "file", Level: "info"}, &buf)

	l.Debug().Msg("hidden")
	l.Info().Msg("playback: session started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "playback: session started", entry["message"])
	assert.Contains(t, entry, "time")
	assert.NotContains(t, entry, "caller")
}

func TestNew_JSONDebugAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: "file", Level: "debug"}, &buf)
	l.Debug().Msg("tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["caller"], "logger/logger_test.go:")
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano360.log")
	closer, err := Init(Config{Output: "file", Level: "info", File: path})
	require.NoError(t, err)
	t.Cleanup(func() { zlog.Logger = zerolog.Nop() })

	zlog.Info().Msg("written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestInit_FileRequiresPath(t *testing.T) {
	_, err := Init(Config{Output: "file"})
	assert.Error(t, err)
}
