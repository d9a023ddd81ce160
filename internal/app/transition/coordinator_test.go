package transition

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/domain/clip"
)

const frame = 100 * time.Millisecond

func fade(cut, destroy time.Duration) *clip.TransitionDescriptor {
	return &clip.TransitionDescriptor{Kind: "fade", TransitionTime: cut, DestroyTime: destroy, Speed: 1}
}

// recorder records the elapsed virtual time at which each signal fired.
type recorder struct {
	now   time.Duration
	begin []time.Duration
	cut   []time.Duration
	end   []time.Duration
}

func (r *recorder) listeners() Listeners {
	return Listeners{
		OnBegin:    func(*Handle) { r.begin = append(r.begin, r.now) },
		OnCutPoint: func(*Handle) { r.cut = append(r.cut, r.now) },
		OnEnd:      func(*Handle) { r.end = append(r.end, r.now) },
	}
}

func run(c *Coordinator, r *recorder, frames int) {
	for i := 0; i < frames; i++ {
		r.now += frame
		c.Tick(frame)
	}
}

func TestCoordinator_SignalTiming(t *testing.T) {
	tests := []struct {
		name      string
		delay     time.Duration
		desc      *clip.TransitionDescriptor
		wantBegin time.Duration
		wantCut   time.Duration
		wantEnd   time.Duration
	}{
		{
			name:      "no delay",
			desc:      fade(time.Second, 500*time.Millisecond),
			wantBegin: frame,
			wantCut:   time.Second,
			wantEnd:   1500 * time.Millisecond,
		},
		{
			name:      "with delay",
			delay:     500 * time.Millisecond,
			desc:      fade(time.Second, 500*time.Millisecond),
			wantBegin: 500 * time.Millisecond,
			wantCut:   1500 * time.Millisecond,
			wantEnd:   2 * time.Second,
		},
		{
			name:      "auto adjusted speed",
			desc:      &clip.TransitionDescriptor{Kind: "fade", TransitionTime: time.Second, DestroyTime: time.Second, Speed: 2, AutoAdjust: true},
			wantBegin: frame,
			wantCut:   500 * time.Millisecond,
			wantEnd:   1500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator()
			r := &recorder{}
			c.AddListener(r.listeners())

			h, err := c.Trigger(tt.desc, tt.delay)
			require.NoError(t, err)
			assert.True(t, c.IsRunning())

			run(c, r, 40)

			require.Len(t, r.begin, 1)
			require.Len(t, r.cut, 1)
			require.Len(t, r.end, 1)
			assert.Equal(t, tt.wantBegin, r.begin[0])
			assert.Equal(t, tt.wantCut, r.cut[0])
			assert.Equal(t, tt.wantEnd, r.end[0])
			assert.True(t, h.Begun())
			assert.True(t, h.CutPointReached())
			assert.True(t, h.Ended())
			assert.False(t, c.IsRunning())
		})
	}
}

func TestCoordinator_RejectsConcurrentTrigger(t *testing.T) {
	c := NewCoordinator()
	_, err := c.Trigger(fade(time.Second, 0), 0)
	require.NoError(t, err)

	_, err = c.Trigger(fade(time.Second, 0), 0)
	assert.True(t, errors.Is(err, ErrBusy))

	run(c, &recorder{}, 10)
	assert.False(t, c.IsRunning())

	_, err = c.Trigger(fade(time.Second, 0), 0)
	assert.NoError(t, err, "a new transition may start once the previous one ended")
}

func TestCoordinator_InvalidDescriptor(t *testing.T) {
	c := NewCoordinator()

	_, err := c.Trigger(nil, 0)
	assert.True(t, errors.Is(err, ErrInvalidDescriptor))

	_, err = c.Trigger(&clip.TransitionDescriptor{}, 0)
	assert.True(t, errors.Is(err, ErrInvalidDescriptor))
	assert.False(t, c.IsRunning())
}

func TestCoordinator_Abort(t *testing.T) {
	c := NewCoordinator()
	r := &recorder{}
	c.AddListener(r.listeners())

	h, err := c.Trigger(fade(time.Second, 0), 0)
	require.NoError(t, err)
	run(c, r, 2)
	c.Abort()
	run(c, r, 20)

	assert.False(t, c.IsRunning())
	assert.True(t, h.Begun())
	assert.False(t, h.CutPointReached())
	assert.Empty(t, r.cut)
}
