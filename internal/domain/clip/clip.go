// Package clip provides the Clip domain entity.
package clip

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ToEnd is the EndOffset sentinel meaning "play to the end of the clip".
const ToEnd time.Duration = -1

// ErrInvalid marks every clip validation failure.
var ErrInvalid = errors.New("invalid clip")

// Hooks are lifecycle callbacks fired by the sequencer.
type Hooks struct {
	OnStart func(c Clip) // Clip became live
	OnTick  func(c Clip) // Every scheduler tick while live
	OnEnd   func(c Clip) // Clip content no longer displayed
}

// Clip describes one panoramic clip to play.
// A Clip is treated as immutable for the duration of a play.
type Clip struct {
	ID           string                // Stable identifier
	Source       string                // Opaque source handle (path or URI)
	Duration     time.Duration         // Full length of the source
	StartOffset  time.Duration         // Position to start playing from
	EndOffset    time.Duration         // Position to stop at, or ToEnd
	PlaybackRate float64               // Speed multiplier, > 0
	Volume       float64               // 0..1
	Transition   *TransitionDescriptor // Transition played when leaving this clip (nil = hard cut)
	Hooks        Hooks
}

// TransitionDescriptor describes the effect played when leaving a clip.
type TransitionDescriptor struct {
	Kind           string         // Registered transition kind
	TransitionTime time.Duration  // Time from begin to cut point
	DestroyTime    time.Duration  // Time from cut point to end
	Speed          float64        // Animation speed
	AutoAdjust     bool           // Scale TransitionTime by 1/Speed
	Settings       map[string]any // Kind specific settings
}

// CutPointAfter returns the time from begin to the visual midpoint.
func (t *TransitionDescriptor) CutPointAfter() time.Duration {
	return t.scale(t.TransitionTime)
}

// EndAfter returns the time from begin to the end of the effect. DestroyTime
// is never scaled by Speed.
func (t *TransitionDescriptor) EndAfter() time.Duration {
	return t.CutPointAfter() + t.DestroyTime
}

func (t *TransitionDescriptor) scale(d time.Duration) time.Duration {
	if t.AutoAdjust && t.Speed > 0 {
		return time.Duration(float64(d) / t.Speed)
	}
	return d
}

// Validate checks the descriptor timing.
func (t *TransitionDescriptor) Validate() error {
	if t.Kind == "" {
		return errors.Mark(errors.New("transition kind is required"), ErrInvalid)
	}
	if t.TransitionTime < 0 || t.DestroyTime < 0 {
		return errors.Mark(errors.Newf("transition %s: times must be non-negative", t.Kind), ErrInvalid)
	}
	if t.AutoAdjust && t.Speed <= 0 {
		return errors.Mark(errors.Newf("transition %s: speed must be positive when auto_adjust is set", t.Kind), ErrInvalid)
	}
	return nil
}

// HasTransition reports whether leaving this clip plays an effect.
func (c *Clip) HasTransition() bool {
	return c.Transition != nil
}

// ResolvedEnd returns the position at which the clip stops.
func (c *Clip) ResolvedEnd() time.Duration {
	if c.EndOffset == ToEnd {
		return c.Duration
	}
	return c.EndOffset
}

// TriggerAt returns the position at which the outgoing transition starts,
// so that its cut point lands on ResolvedEnd. The effect runs in wall time
// while the position advances at PlaybackRate. When the effect is longer
// than the play window the transition starts at StartOffset.
func (c *Clip) TriggerAt() time.Duration {
	end := c.ResolvedEnd()
	if c.Transition == nil {
		return end
	}
	rate := c.PlaybackRate
	if rate <= 0 {
		rate = 1
	}
	at := end - time.Duration(float64(c.Transition.CutPointAfter())*rate)
	if at < c.StartOffset {
		return c.StartOffset
	}
	return at
}

// PlayTime returns the wall time the trimmed window takes at PlaybackRate.
func (c *Clip) PlayTime() time.Duration {
	window := c.ResolvedEnd() - c.StartOffset
	if c.PlaybackRate <= 0 || window <= 0 {
		return 0
	}
	return time.Duration(float64(window) / c.PlaybackRate)
}

// Validate checks that the clip can be played.
func (c *Clip) Validate() error {
	if c.Source == "" {
		return errors.Mark(errors.Newf("clip %q: no source assigned", c.ID), ErrInvalid)
	}
	if c.StartOffset < 0 || c.StartOffset > c.Duration {
		return errors.Mark(errors.Newf("clip %q: start offset %v out of range [0, %v]", c.ID, c.StartOffset, c.Duration), ErrInvalid)
	}
	if c.EndOffset != ToEnd {
		if c.EndOffset < 0 || c.EndOffset > c.Duration {
			return errors.Mark(errors.Newf("clip %q: end offset %v out of range [0, %v]", c.ID, c.EndOffset, c.Duration), ErrInvalid)
		}
		if c.EndOffset < c.StartOffset {
			return errors.Mark(errors.Newf("clip %q: end offset %v before start offset %v", c.ID, c.EndOffset, c.StartOffset), ErrInvalid)
		}
	}
	if c.PlaybackRate <= 0 {
		return errors.Mark(errors.Newf("clip %q: playback rate must be positive", c.ID), ErrInvalid)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return errors.Mark(errors.Newf("clip %q: volume %v out of range [0, 1]", c.ID, c.Volume), ErrInvalid)
	}
	if c.Transition != nil {
		if err := c.Transition.Validate(); err != nil {
			return errors.Wrapf(err, "clip %q", c.ID)
		}
	}
	return nil
}
