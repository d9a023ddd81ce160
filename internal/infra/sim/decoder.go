// Package sim provides stand-in playback collaborators driven by the
// scheduler tick: a decoder, a surface allocator, a visibility mask and a
// scene preloader.
package sim

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/pano360/internal/domain/clip"
)

// ErrDecode is reported by Failed for sources configured to fail.
var ErrDecode = errors.New("decode failed")

// DecoderConfig holds decoder configuration.
type DecoderConfig struct {
	Latency       time.Duration            // Default prepare latency
	SourceLatency map[string]time.Duration // Per source prepare latency
	FailSources   []string                 // Sources whose preparation fails
}

// Decoder simulates asynchronous decoding. Position advances by
// dt × PlaybackRate on each Tick while playing.
type Decoder struct {
	mu     sync.Mutex
	name   string
	config DecoderConfig

	clip     clip.Clip
	prepared bool
	latency  time.Duration
	waited   time.Duration
	ready    bool
	failed   error

	playing  bool
	paused   bool
	finished bool
	position time.Duration
}

// NewDecoder creates a decoder.
func NewDecoder(name string, config DecoderConfig) *Decoder {
	return &Decoder{name: name, config: config}
}

// Prepare begins preparing c. A zero latency makes the decoder ready at once.
func (d *Decoder) Prepare(c clip.Clip) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	latency := d.config.Latency
	if l, ok := d.config.SourceLatency[c.Source]; ok {
		latency = l
	}

	d.reset()
	d.clip = c
	d.prepared = true
	d.latency = latency
	d.position = c.StartOffset
	zlog.Debug().Msgf("sim: decoder prepare: decoder=%s clip=%s source=%s latency=%v", d.name, c.ID, c.Source, latency)
	if latency <= 0 {
		d.completeLocked()
	}
	return nil
}

// Tick advances preparation and playback by dt.
func (d *Decoder) Tick(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.prepared || d.failed != nil {
		return
	}
	if !d.ready {
		d.waited += dt
		if d.waited >= d.latency {
			d.completeLocked()
		}
		return
	}
	if !d.playing || d.paused || d.finished {
		return
	}

	rate := d.clip.PlaybackRate
	if rate <= 0 {
		rate = 1
	}
	d.position += time.Duration(float64(dt) * rate)
	if end := d.clip.ResolvedEnd(); d.position >= end {
		d.position = end
		d.finished = true
	}
}

func (d *Decoder) completeLocked() {
	if lo.Contains(d.config.FailSources, d.clip.Source) {
		d.failed = errors.Wrapf(ErrDecode, "source %s", d.clip.Source)
		zlog.Warn().Msgf("sim: decoder failed: decoder=%s clip=%s", d.name, d.clip.ID)
		return
	}
	d.ready = true
}

// Ready reports whether the first frame is available.
func (d *Decoder) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// Failed returns the preparation failure, if any.
func (d *Decoder) Failed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed
}

// Play starts playback.
func (d *Decoder) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = true
}

// Pause pauses playback.
func (d *Decoder) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

// Resume resumes playback.
func (d *Decoder) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Paused reports whether playback is paused.
func (d *Decoder) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Stop stops playback and drops the clip.
func (d *Decoder) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// Position returns the playback position.
func (d *Decoder) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// Finished reports whether the resolved end was reached.
func (d *Decoder) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// Playing reports whether Play was called for the current clip.
func (d *Decoder) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *Decoder) reset() {
	d.clip = clip.Clip{}
	d.prepared = false
	d.latency = 0
	d.waited = 0
	d.ready = false
	d.failed = nil
	d.playing = false
	d.paused = false
	d.finished = false
	d.position = 0
}
