package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/domain/playlist"
	"github.com/osa030/pano360/internal/infra/config"
)

const testConfig = `
admin:
  token: secret
playback:
  frame_rate: 10
simulation:
  prepare_latency_ms: 100
playlist:
  name: lobby
  clips:
    - id: a
      source: a.mp4
      duration_sec: 5
    - id: b
      source: b.mp4
      duration_sec: 5
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestPrintTransitions(t *testing.T) {
	var buf bytes.Buffer
	printTransitionsTo(&buf)

	out := buf.String()
	assert.Contains(t, out, "Available Transitions:")
	for _, name := range []string{"fade", "dissolve", "flip"} {
		assert.Contains(t, out, name)
	}
}

func TestLoadPlaylist(t *testing.T) {
	pl, err := loadPlaylist(writeConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "lobby", pl.Name)
	assert.Equal(t, []string{"a", "b"}, pl.IDs())

	_, err = loadPlaylist(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildSequencer(t *testing.T) {
	cfg, err := config.Load(writeConfig(t))
	require.NoError(t, err)

	seq, sched, err := buildSequencer(cfg)
	require.NoError(t, err)
	defer seq.Close()

	require.NoError(t, seq.Start(0, playlist.EndOfList))
	sched.StepN(5)

	st := seq.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "a", st.ClipID)
	assert.Equal(t, 0, st.Index)

	require.NoError(t, seq.Stop())
	sched.StepN(2)
	assert.False(t, seq.Status().Running)
	assert.True(t, seq.Snapshot().IsReset())
}
