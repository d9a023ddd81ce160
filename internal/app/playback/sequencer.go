package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/app/transition"
	"github.com/osa030/pano360/internal/domain/clip"
	"github.com/osa030/pano360/internal/domain/playlist"
)

// Config holds sequencer configuration.
type Config struct {
	Loop        bool   // Wrap from the end of the range back to its start
	EventBuffer int    // Event channel capacity (default 64)
	Scene       string // Scene preloaded at start and activated at end (empty = none)
}

// Status is a point-in-time view of playback.
type Status struct {
	Running           bool
	Phase             Phase
	SessionID         string
	Index             int // -1 when nothing is live
	ClipID            string
	Position          time.Duration
	Paused            bool
	TransitionRunning bool
	Loop              bool
}

// Sequencer plays a clip range through two alternating slots. It advances
// one step per Tick; commands and ticks serialize on one mutex.
type Sequencer struct {
	mu sync.Mutex

	config   Config
	coord    Coordinator
	surfaces SurfaceAllocator
	mask     VisibilityMask
	scenes   ScenePreloader
	slots    [2]*Slot

	playlist *playlist.Playlist
	clips    []clip.Clip // Copy of the playlist for the active run

	session session
	lastRun *run

	// Effect still running when its session reset, and that session's ID.
	trailing        *transition.Handle
	trailingSession string
	pending []func() // Hooks run after the lock is released

	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
}

// New creates a sequencer over pl.
func New(config Config, deps Deps, pl *playlist.Playlist) (*Sequencer, error) {
	if deps.Coordinator == nil {
		return nil, errors.Mark(errors.New("playback: coordinator is required"), ErrConfiguration)
	}
	if deps.Surfaces == nil {
		return nil, errors.Mark(errors.New("playback: surface allocator is required"), ErrConfiguration)
	}
	for i, d := range deps.Decoders {
		if d == nil {
			return nil, errors.Mark(errors.Newf("playback: decoder %d is required", i), ErrConfiguration)
		}
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		config:   config,
		coord:    deps.Coordinator,
		surfaces: deps.Surfaces,
		mask:     deps.Mask,
		scenes:   deps.Scenes,
		slots:    [2]*Slot{newSlot(0, deps.Decoders[0]), newSlot(1, deps.Decoders[1])},
		playlist: pl,
		eventCh:  make(chan Event, config.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.coord.AddListener(transition.Listeners{
		OnBegin:    s.onTransitionBegin,
		OnCutPoint: s.onTransitionCutPoint,
		OnEnd:      s.onTransitionEnd,
	})
	return s, nil
}

// Events returns the event channel.
func (s *Sequencer) Events() <-chan Event {
	return s.eventCh
}

// Tick advances the sequencer by one step.
func (s *Sequencer) Tick(dt time.Duration) {
	s.mu.Lock()
	s.stepLocked()
	pending := s.takePendingLocked()
	s.mu.Unlock()

	runPending(pending)
}

// Snapshot returns a copy of the session state.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.snapshot()
}

// Status returns the current playback status.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := &s.session
	st := Status{
		Running:           ss.phase != PhaseIdle,
		Phase:             ss.phase,
		SessionID:         ss.id,
		Index:             -1,
		TransitionRunning: s.coord.IsRunning(),
		Loop:              ss.loop,
	}
	if ss.live != nil {
		st.Index = ss.index
		st.ClipID = ss.live.clip.ID
		st.Position = ss.live.decoder.Position()
		st.Paused = ss.live.decoder.Paused()
	}
	return st
}

// Playlist returns the playlist the next run will play.
func (s *Sequencer) Playlist() *playlist.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist
}

// SetPlaylist replaces the playlist. It is rejected while a run is active.
func (s *Sequencer) SetPlaylist(pl *playlist.Playlist) error {
	return s.do("set_playlist", func() error {
		if pl == nil {
			return errors.Mark(errors.New("playlist is required"), ErrConfiguration)
		}
		if s.session.phase != PhaseIdle {
			return ErrAlreadyRunning
		}
		s.playlist = pl
		zlog.Info().Msgf("playback: playlist replaced: name=%s clips=%d", pl.Name, pl.Len())
		return nil
	})
}

// Wait blocks until the active (or most recent) run ends and returns its
// terminal error. It returns nil when no run was ever started.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.lastRun
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down an active run and closes the event channel.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.session.phase != PhaseIdle {
		s.abortLocked(ErrClosed)
	}
	s.closed = true
	s.cancel()
	close(s.eventCh)
	pending := s.takePendingLocked()
	s.mu.Unlock()

	runPending(pending)
}

// stepLocked runs one main loop step.
func (s *Sequencer) stepLocked() {
	ss := &s.session
	if ss.phase == PhaseIdle || ss.phase == PhaseResetting {
		return
	}

	for _, slot := range []*Slot{ss.live, ss.preparing} {
		if slot == nil {
			continue
		}
		if err := slot.failure(); err != nil {
			s.abortLocked(err)
			return
		}
	}

	if ss.live != nil {
		s.observeLiveLocked()
	}

	switch ss.phase {
	case PhasePreparing:
		s.stepPreparingLocked()
	case PhaseLive:
		s.stepLiveLocked()
	case PhaseAwaitingSwap, PhaseAwaitingFinalMidpoint:
		s.stepArmedLocked()
	}
}

// observeLiveLocked fires the live clip tick hook and latches clip end.
func (s *Sequencer) observeLiveLocked() {
	ss := &s.session
	c := ss.live.clip
	if c.Hooks.OnTick != nil {
		s.pending = append(s.pending, func() { c.Hooks.OnTick(c) })
	}
	if !ss.clipFinished && (ss.live.decoder.Finished() || ss.live.decoder.Position() >= c.ResolvedEnd()) {
		ss.clipFinished = true
		zlog.Debug().Msgf("playback: clip finished: index=%d clip=%s", ss.index, c.ID)
	}
}

func (s *Sequencer) stepPreparingLocked() {
	ss := &s.session
	if ss.preparing == nil || !ss.preparing.ready() {
		return
	}

	ss.live = ss.preparing
	ss.preparing = nil
	ss.index = ss.nextIndex
	ss.hasNext = false
	s.goLiveLocked()

	if err := s.lookaheadLocked(); err != nil {
		s.abortLocked(err)
	}
}

func (s *Sequencer) stepLiveLocked() {
	ss := &s.session
	if ss.armed {
		return
	}

	c := ss.live.clip
	due := ss.clipFinished
	if !due && c.HasTransition() && ss.live.decoder.Position() >= c.TriggerAt() {
		due = true
	}
	if !due && ss.overridePending && (ss.preparing == nil || ss.preparing.ready()) {
		due = true
	}
	if !due {
		return
	}

	if err := s.armLocked(); err != nil {
		if errors.Is(err, transition.ErrBusy) {
			// Previous effect still in its destroy phase: start late.
			return
		}
		s.abortLocked(err)
		return
	}
	s.stepArmedLocked()
}

// armLocked triggers the outgoing transition of the live clip, or satisfies
// the midpoint at once for a hard cut.
func (s *Sequencer) armLocked() error {
	ss := &s.session
	c := ss.live.clip
	if c.HasTransition() {
		h, err := s.coord.Trigger(c.Transition, 0)
		if err != nil {
			if errors.Is(err, transition.ErrBusy) {
				return err
			}
			return errors.Mark(errors.Wrapf(err, "clip %q", c.ID), ErrConfiguration)
		}
		ss.transition = h
	} else {
		ss.midpointReached = true
	}

	ss.armed = true
	ss.overridePending = false
	if ss.hasNext && !ss.stopping {
		ss.phase = PhaseAwaitingSwap
	} else {
		ss.phase = PhaseAwaitingFinalMidpoint
	}
	zlog.Debug().Msgf("playback: outgoing armed: index=%d clip=%s phase=%s", ss.index, c.ID, ss.phase)
	return nil
}

// stepArmedLocked completes a swap or the final reset once its conditions hold.
func (s *Sequencer) stepArmedLocked() {
	ss := &s.session
	if !ss.midpointReached && ss.transition != nil && ss.transition.CutPointReached() {
		ss.midpointReached = true
	}

	switch ss.phase {
	case PhaseAwaitingSwap:
		if ss.midpointReached && ss.preparing != nil && ss.preparing.ready() {
			s.swapLocked()
		}
	case PhaseAwaitingFinalMidpoint:
		if ss.midpointReached && (ss.clipFinished || ss.stopping) {
			s.finishLocked(nil)
		}
	}
}

func (s *Sequencer) swapLocked() {
	ss := &s.session
	s.endLiveLocked()

	ss.live = ss.preparing
	ss.preparing = nil
	ss.index = ss.nextIndex
	ss.hasNext = false
	ss.clipFinished = false
	ss.midpointReached = false
	ss.overridePending = false
	ss.armed = false
	ss.leaving = ss.transition
	ss.transition = nil
	ss.swaps++
	s.goLiveLocked()

	if err := s.lookaheadLocked(); err != nil {
		s.abortLocked(err)
	}
}

// goLiveLocked starts the live slot.
func (s *Sequencer) goLiveLocked() {
	ss := &s.session
	ss.phase = PhaseLive
	ss.live.decoder.Play()

	c := ss.live.clip
	if c.Hooks.OnStart != nil {
		s.pending = append(s.pending, func() { c.Hooks.OnStart(c) })
	}
	zlog.Info().Msgf("playback: clip started: session=%s slot=%d index=%d clip=%s", ss.id, ss.live.id, ss.index, c.ID)
	s.sendEventLocked(Event{Type: EventClipStarted, Index: ss.index, ClipID: c.ID})
}

// endLiveLocked releases the live slot and fires its end hook.
func (s *Sequencer) endLiveLocked() {
	ss := &s.session
	if ss.live == nil {
		return
	}
	c, index := ss.live.clip, ss.index
	ss.live.release()
	ss.live = nil

	if c.Hooks.OnEnd != nil {
		s.pending = append(s.pending, func() { c.Hooks.OnEnd(c) })
	}
	zlog.Info().Msgf("playback: clip ended: session=%s index=%d clip=%s", ss.id, index, c.ID)
	s.sendEventLocked(Event{Type: EventClipEnded, Index: index, ClipID: c.ID})
}

// lookaheadLocked assigns the clip after the live one to the free slot.
func (s *Sequencer) lookaheadLocked() error {
	ss := &s.session
	if ss.stopping {
		return nil
	}
	next, ok := s.nextIndexLocked(ss.index)
	if !ok {
		ss.hasNext = false
		return nil
	}
	return s.prepareLocked(next)
}

// prepareLocked validates clip i and assigns it to the free slot.
func (s *Sequencer) prepareLocked(i int) error {
	ss := &s.session
	c := s.clips[i]
	if err := c.Validate(); err != nil {
		return classify(err)
	}
	if ss.preparing != nil {
		ss.preparing.release()
		ss.preparing = nil
		ss.hasNext = false
	}

	slot := s.freeSlotLocked()
	if err := slot.assign(s.surfaces, c, i); err != nil {
		return err
	}
	ss.preparing = slot
	ss.nextIndex = i
	ss.hasNext = true
	return nil
}

func (s *Sequencer) nextIndexLocked(i int) (int, bool) {
	ss := &s.session
	if i+1 < ss.hi {
		return i + 1, true
	}
	if ss.loop {
		return ss.lo, true
	}
	return 0, false
}

// freeSlotLocked returns the slot that is not live.
func (s *Sequencer) freeSlotLocked() *Slot {
	if s.session.live == s.slots[0] {
		return s.slots[1]
	}
	return s.slots[0]
}

// finishLocked releases every resource and resets the session.
func (s *Sequencer) finishLocked(cause error) {
	ss := &s.session
	ss.phase = PhaseResetting

	if cause != nil {
		s.coord.Abort()
	}
	s.endLiveLocked()
	for _, slot := range s.slots {
		slot.release()
	}
	if ss.hidden && s.mask != nil {
		s.mask.Show()
	}
	if s.scenes != nil && s.config.Scene != "" {
		s.scenes.Activate(s.config.Scene)
	}

	if cause == nil {
		s.keepTrailingLocked()
	}
	id, r, swaps := ss.id, ss.run, ss.swaps
	s.session = session{}
	s.clips = nil

	if r != nil {
		r.err = cause
		close(r.done)
	}
	zlog.Info().Msgf("playback: session ended: session=%s swaps=%d err=%v", id, swaps, cause)
	s.sendEventLocked(Event{Type: EventSessionEnded, SessionID: id, Index: -1, Err: cause})
}

// keepTrailingLocked records the unfinished effect of the ending session so
// its end signal is still reported after the reset.
func (s *Sequencer) keepTrailingLocked() {
	ss := &s.session
	for _, h := range []*transition.Handle{ss.transition, ss.leaving} {
		if h != nil && !h.Ended() {
			s.trailing, s.trailingSession = h, ss.id
			return
		}
	}
}

// abortLocked terminates the run with cause.
func (s *Sequencer) abortLocked(cause error) {
	ss := &s.session
	zlog.Error().Err(cause).Msgf("playback: run aborted: session=%s phase=%s index=%d", ss.id, ss.phase, ss.currentIndex())
	s.sendEventLocked(Event{Type: EventRunAborted, Index: ss.currentIndex(), Err: cause})
	s.finishLocked(cause)
}

func (s *Sequencer) onTransitionBegin(h *transition.Handle) {
	s.onTransition(h, EventTransitionBegin, nil)
}

func (s *Sequencer) onTransitionCutPoint(h *transition.Handle) {
	s.onTransition(h, EventTransitionCutPoint, func() { s.session.midpointReached = true })
}

func (s *Sequencer) onTransitionEnd(h *transition.Handle) {
	s.onTransition(h, EventTransitionEnd, nil)
}

// onTransition records a coordinator signal for the transition this
// session armed. Signals of other transitions are ignored.
func (s *Sequencer) onTransition(h *transition.Handle, t EventType, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := &s.session
	switch h {
	case nil:
		return
	case ss.transition:
		if apply != nil {
			apply()
		}
	case ss.leaving:
		if t == EventTransitionEnd {
			ss.leaving = nil
		}
	case s.trailing:
		if t != EventTransitionEnd {
			return
		}
		id := s.trailingSession
		s.trailing, s.trailingSession = nil, ""
		zlog.Debug().Msgf("playback: transition signal: session=%s id=%d kind=%s signal=%s", id, h.ID(), h.Descriptor().Kind, t)
		s.sendEventLocked(Event{Type: t, SessionID: id, Index: -1})
		return
	default:
		return
	}
	zlog.Debug().Msgf("playback: transition signal: session=%s id=%d kind=%s signal=%s", ss.id, h.ID(), h.Descriptor().Kind, t)
	s.sendEventLocked(Event{Type: t, Index: ss.index, ClipID: ss.live.clipID()})
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (s *Sequencer) sendEventLocked(e Event) {
	if s.closed {
		return
	}
	if e.SessionID == "" {
		e.SessionID = s.session.id
	}
	e.Phase = s.session.phase
	e.At = time.Now()

	select {
	case s.eventCh <- e:
	case <-s.ctx.Done():
	default:
		zlog.Warn().Msgf("playback: event dropped: type=%s session=%s", e.Type, e.SessionID)
	}
}

func (s *Sequencer) takePendingLocked() []func() {
	p := s.pending
	s.pending = nil
	return p
}

func runPending(pending []func()) {
	for _, f := range pending {
		f()
	}
}

func (s *Slot) clipID() string {
	if s == nil {
		return ""
	}
	return s.clip.ID
}
