package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/domain/clip"
)

const validYAML = `
server:
  addr: ":9090"
  hooks:
    on_started: ["echo started"]
admin:
  token: secret
playback:
  loop: true
  frame_rate: 30
display:
  hide_scene: true
  blacklist: [player]
  objects:
    - name: floor
    - name: hud
      tags: [ui]
scene:
  end_scene: lobby
simulation:
  source_latency_ms:
    slow.mp4: 2000
playlist:
  name: tour
  clips:
    - id: beach
      source: beach.mp4
      duration_sec: 10
      start_offset_sec: 1.5
      volume: 50
      transition:
        kind: fade
        time_sec: 1
        destroy_time_sec: 0.5
        settings:
          color: "#112233"
    - id: city
      source: slow.mp4
      duration_sec: 8
      end_offset_sec: 6
      playback_rate: 2
      volume: 0
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"echo started"}, cfg.Server.Hooks.OnStarted)
	assert.True(t, cfg.Playback.Loop)
	assert.Equal(t, 30, cfg.Playback.FrameRate)
	assert.Equal(t, -1, cfg.Playback.EndIndex, "end index defaults to end of list")
	assert.Equal(t, 64, cfg.Playback.EventBuffer)
	assert.Equal(t, 4, cfg.Display.AntiAliasing)
	assert.Equal(t, "none", cfg.Display.Layout3D)
	assert.Equal(t, 300*time.Millisecond, cfg.Simulation.PrepareLatency())
	assert.Equal(t, map[string]time.Duration{"slow.mp4": 2 * time.Second}, cfg.Simulation.SourceLatency())

	pl := cfg.Playlist.Build()
	assert.Equal(t, "tour", pl.Name)
	assert.Equal(t, []string{"beach", "city"}, pl.IDs())
}

func TestClipConfig_ToClip(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	clips := cfg.Playlist.ToClips()
	require.Len(t, clips, 2)

	beach := clips[0]
	assert.Equal(t, 10*time.Second, beach.Duration)
	assert.Equal(t, 1500*time.Millisecond, beach.StartOffset)
	assert.Equal(t, clip.ToEnd, beach.EndOffset)
	assert.Equal(t, 1.0, beach.PlaybackRate)
	assert.Equal(t, 0.5, beach.Volume)
	require.NotNil(t, beach.Transition)
	assert.Equal(t, "fade", beach.Transition.Kind)
	assert.Equal(t, time.Second, beach.Transition.TransitionTime)
	assert.Equal(t, 500*time.Millisecond, beach.Transition.DestroyTime)
	assert.Equal(t, 1.0, beach.Transition.Speed)
	assert.Equal(t, "#112233", beach.Transition.Settings["color"])

	city := clips[1]
	assert.Equal(t, 6*time.Second, city.EndOffset)
	assert.Equal(t, 2.0, city.PlaybackRate)
	assert.Equal(t, 0.0, city.Volume, "explicit zero volume is kept")
	assert.Nil(t, city.Transition)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Parse([]byte(validYAML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.Admin.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "no clips",
			mutate:  func(c *Config) { c.Playlist.Clips = nil },
			wantErr: true,
			errMsg:  "Clips",
		},
		{
			name:    "duplicate clip ids",
			mutate:  func(c *Config) { c.Playlist.Clips[1].ID = "beach" },
			wantErr: true,
			errMsg:  "duplicate clip ids",
		},
		{
			name:    "start offset past duration",
			mutate:  func(c *Config) { c.Playlist.Clips[0].StartOffsetSec = 20 },
			wantErr: true,
			errMsg:  "start offset",
		},
		{
			name: "end offset before start offset",
			mutate: func(c *Config) {
				end := 1.0
				c.Playlist.Clips[0].EndOffsetSec = &end
			},
			wantErr: true,
			errMsg:  "before start offset",
		},
		{
			name:    "unknown transition kind",
			mutate:  func(c *Config) { c.Playlist.Clips[0].Transition.Kind = "spin" },
			wantErr: true,
			errMsg:  "spin",
		},
		{
			name:    "invalid transition settings",
			mutate:  func(c *Config) { c.Playlist.Clips[0].Transition.Settings = map[string]any{"color": "red"} },
			wantErr: true,
			errMsg:  "Color",
		},
		{
			name:    "playback rate out of range",
			mutate:  func(c *Config) { c.Playlist.Clips[1].PlaybackRate = 20 },
			wantErr: true,
			errMsg:  "PlaybackRate",
		},
		{
			name:    "start index out of range",
			mutate:  func(c *Config) { c.Playback.StartIndex = 2 },
			wantErr: true,
			errMsg:  "start index",
		},
		{
			name:    "invalid anti aliasing",
			mutate:  func(c *Config) { c.Display.AntiAliasing = 3 },
			wantErr: true,
			errMsg:  "AntiAliasing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("playlist: [unclosed"))
	assert.True(t, playback.IsConfiguration(err))

	_, err = Parse([]byte("admin:\n  token: x\n"))
	assert.True(t, playback.IsConfiguration(err), "missing clips should be a configuration error")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	t.Setenv("PANO360_ADMIN_TOKEN", "from-env")
	t.Setenv("PANO360_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
