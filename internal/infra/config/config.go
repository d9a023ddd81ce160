// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/app/transition"
	"github.com/osa030/pano360/internal/domain/clip"
	"github.com/osa030/pano360/internal/domain/playlist"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Admin      AdminConfig      `yaml:"admin"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Display    DisplayConfig    `yaml:"display"`
	Scene      SceneConfig      `yaml:"scene"`
	Simulation SimulationConfig `yaml:"simulation"`
	Playlist   PlaylistConfig   `yaml:"playlist"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	Loop        bool `yaml:"loop"`
	PlayOnStart bool `yaml:"play_on_start"`
	StartIndex  int  `yaml:"start_index" validate:"gte=0"`
	EndIndex    int  `yaml:"end_index" default:"-1" validate:"gte=-1"`
	FrameRate   int  `yaml:"frame_rate" default:"60" validate:"gte=1,lte=240"`
	EventBuffer int  `yaml:"event_buffer" default:"64" validate:"gte=1,lte=65536"`
}

// DisplayConfig represents render surface and scene masking configuration.
type DisplayConfig struct {
	AntiAliasing  int                 `yaml:"anti_aliasing" default:"4" validate:"oneof=1 2 4 8"`
	Layout3D      string              `yaml:"layout_3d" default:"none" validate:"oneof=none side_by_side over_under"`
	Rotation      float64             `yaml:"rotation" validate:"gte=0,lt=360"`
	HideScene     bool                `yaml:"hide_scene"`
	Blacklist     []string            `yaml:"blacklist"`
	BlacklistTags []string            `yaml:"blacklist_tags"`
	Objects       []SceneObjectConfig `yaml:"objects" validate:"omitempty,dive"`
}

// SceneObjectConfig represents a scene object subject to masking.
type SceneObjectConfig struct {
	Name string   `yaml:"name" validate:"required"`
	Tags []string `yaml:"tags"`
}

// SceneConfig represents the scene shown after a session.
type SceneConfig struct {
	EndScene string `yaml:"end_scene"`
}

// SimulationConfig represents the simulated decoder and surfaces.
type SimulationConfig struct {
	PrepareLatencyMs int            `yaml:"prepare_latency_ms" default:"300" validate:"gte=0,lte=60000"`
	SourceLatencyMs  map[string]int `yaml:"source_latency_ms" validate:"omitempty,dive,gte=0,lte=60000"`
	FailSources      []string       `yaml:"fail_sources"`
}

// PlaylistConfig represents the clip list.
type PlaylistConfig struct {
	Name  string       `yaml:"name" default:"default"`
	Watch bool         `yaml:"watch"`
	Clips []ClipConfig `yaml:"clips" validate:"required,min=1,dive"`
}

// ClipConfig represents a single clip.
type ClipConfig struct {
	ID             string            `yaml:"id" validate:"required"`
	Source         string            `yaml:"source" validate:"required"`
	DurationSec    float64           `yaml:"duration_sec" validate:"gt=0"`
	StartOffsetSec float64           `yaml:"start_offset_sec" validate:"gte=0"`
	EndOffsetSec   *float64          `yaml:"end_offset_sec" default:"-1"`
	PlaybackRate   float64           `yaml:"playback_rate" default:"1" validate:"gte=0.1,lte=10"`
	Volume         *int              `yaml:"volume" default:"100" validate:"gte=0,lte=100"`
	Transition     *TransitionConfig `yaml:"transition"`
}

// TransitionConfig represents the transition played when leaving a clip.
type TransitionConfig struct {
	Kind           string         `yaml:"kind" validate:"required"`
	TimeSec        float64        `yaml:"time_sec" validate:"gte=0"`
	DestroyTimeSec float64        `yaml:"destroy_time_sec" validate:"gte=0"`
	Speed          float64        `yaml:"speed" default:"1" validate:"gt=0"`
	AutoAdjust     bool           `yaml:"auto_adjust"`
	Settings       map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses, defaults and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse config file"), playback.ErrConfiguration)
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "config validation failed"), playback.ErrConfiguration)
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("PANO360_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("PANO360_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateClips(); err != nil {
		return err
	}

	// Validate the configured range against the clip list
	if _, _, err := c.Playlist.Build().ResolveRange(c.Playback.StartIndex, c.Playback.EndIndex); err != nil {
		return errors.Wrap(err, "playback range")
	}

	return nil
}

// validateClips checks unique IDs, offset consistency and transition kinds.
func (c *Config) validateClips() error {
	ids := lo.Map(c.Playlist.Clips, func(cc ClipConfig, _ int) string { return cc.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return errors.Newf("duplicate clip ids: %v", dup)
	}

	for i, cc := range c.Playlist.Clips {
		cl := cc.ToClip()
		if err := cl.Validate(); err != nil {
			return errors.Wrapf(err, "playlist.clips[%d]", i)
		}
		if cl.Transition != nil {
			if err := transition.ValidateDescriptor(cl.Transition); err != nil {
				return errors.Wrapf(err, "playlist.clips[%d]", i)
			}
		}
	}
	return nil
}

// ToClip converts the clip configuration to a domain clip.
func (cc ClipConfig) ToClip() clip.Clip {
	c := clip.Clip{
		ID:           cc.ID,
		Source:       cc.Source,
		Duration:     seconds(cc.DurationSec),
		StartOffset:  seconds(cc.StartOffsetSec),
		EndOffset:    clip.ToEnd,
		PlaybackRate: cc.PlaybackRate,
		Volume:       1,
	}
	if cc.EndOffsetSec != nil && *cc.EndOffsetSec >= 0 {
		c.EndOffset = seconds(*cc.EndOffsetSec)
	}
	if cc.Volume != nil {
		c.Volume = float64(*cc.Volume) / 100
	}
	if t := cc.Transition; t != nil {
		c.Transition = &clip.TransitionDescriptor{
			Kind:           t.Kind,
			TransitionTime: seconds(t.TimeSec),
			DestroyTime:    seconds(t.DestroyTimeSec),
			Speed:          t.Speed,
			AutoAdjust:     t.AutoAdjust,
			Settings:       t.Settings,
		}
	}
	return c
}

// ToClips converts every configured clip.
func (p PlaylistConfig) ToClips() []clip.Clip {
	return lo.Map(p.Clips, func(cc ClipConfig, _ int) clip.Clip { return cc.ToClip() })
}

// Build returns the configured playlist.
func (p PlaylistConfig) Build() *playlist.Playlist {
	return playlist.New(p.Name, p.ToClips())
}

// PrepareLatency returns the default simulated prepare latency.
func (s SimulationConfig) PrepareLatency() time.Duration {
	return time.Duration(s.PrepareLatencyMs) * time.Millisecond
}

// SourceLatency returns the per source simulated prepare latency.
func (s SimulationConfig) SourceLatency() map[string]time.Duration {
	return lo.MapValues(s.SourceLatencyMs, func(ms int, _ string) time.Duration {
		return time.Duration(ms) * time.Millisecond
	})
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
