// Package transition provides the transition coordinator.
package transition

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/domain/clip"
)

// Errors
var (
	ErrBusy              = errors.New("a transition is already running")
	ErrInvalidDescriptor = errors.New("invalid transition descriptor")
)

// Listeners receive the signals of every transition run by a coordinator.
type Listeners struct {
	OnBegin    func(h *Handle)
	OnCutPoint func(h *Handle)
	OnEnd      func(h *Handle)
}

// Handle tracks one triggered transition.
type Handle struct {
	id      uint64
	desc    clip.TransitionDescriptor
	delay   time.Duration
	elapsed time.Duration // guarded by Coordinator.mu

	begun atomic.Bool
	cut   atomic.Bool
	ended atomic.Bool
}

// ID returns the trigger sequence number.
func (h *Handle) ID() uint64 { return h.id }

// Descriptor returns the descriptor the transition was triggered with.
func (h *Handle) Descriptor() clip.TransitionDescriptor { return h.desc }

// Begun reports whether the start delay has elapsed.
func (h *Handle) Begun() bool { return h.begun.Load() }

// CutPointReached reports whether the visual midpoint has been reached.
func (h *Handle) CutPointReached() bool { return h.cut.Load() }

// Ended reports whether the effect has finished.
func (h *Handle) Ended() bool { return h.ended.Load() }

// Coordinator runs at most one transition at a time. It is advanced by Tick,
// one call per scheduler frame.
type Coordinator struct {
	mu        sync.Mutex
	current   *Handle
	seq       uint64
	listeners []Listeners
}

// NewCoordinator creates a coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// AddListener registers signal listeners. Listeners are invoked from Tick
// without the coordinator lock held.
func (c *Coordinator) AddListener(l Listeners) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// IsRunning reports whether a transition is between trigger and end.
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Trigger starts a transition after delay. The cut point is signalled
// exactly delay + desc.CutPointAfter() after the trigger.
func (c *Coordinator) Trigger(desc *clip.TransitionDescriptor, delay time.Duration) (*Handle, error) {
	if desc == nil {
		return nil, errors.Mark(errors.New("no transition assigned"), ErrInvalidDescriptor)
	}
	if err := desc.Validate(); err != nil {
		return nil, errors.Mark(err, ErrInvalidDescriptor)
	}
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.seq++
	h := &Handle{id: c.seq, desc: *desc, delay: delay}
	c.current = h
	c.mu.Unlock()

	zlog.Debug().Msgf("transition: triggered: id=%d kind=%s delay=%v cut_point=%v end=%v",
		h.id, desc.Kind, delay, delay+desc.CutPointAfter(), delay+desc.EndAfter())
	return h, nil
}

// Tick advances the running transition by dt and fires any signals that
// became due. A zero-length transition fires all three signals in one tick.
func (c *Coordinator) Tick(dt time.Duration) {
	c.mu.Lock()
	h := c.current
	if h == nil {
		c.mu.Unlock()
		return
	}
	h.elapsed += dt
	elapsed := h.elapsed

	var fire []func(Listeners)
	if !h.begun.Load() && elapsed >= h.delay {
		h.begun.Store(true)
		fire = append(fire, func(l Listeners) { call(l.OnBegin, h) })
	}
	if h.begun.Load() && !h.cut.Load() && elapsed >= h.delay+h.desc.CutPointAfter() {
		h.cut.Store(true)
		fire = append(fire, func(l Listeners) { call(l.OnCutPoint, h) })
	}
	if h.cut.Load() && elapsed >= h.delay+h.desc.EndAfter() {
		h.ended.Store(true)
		c.current = nil
		fire = append(fire, func(l Listeners) { call(l.OnEnd, h) })
	}
	listeners := make([]Listeners, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, f := range fire {
		for _, l := range listeners {
			f(l)
		}
	}
}

// Abort drops the running transition without firing further signals.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		zlog.Debug().Msgf("transition: aborted: id=%d", c.current.id)
		c.current = nil
	}
}

func call(f func(*Handle), h *Handle) {
	if f != nil {
		f(h)
	}
}
