package playback

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/app/transition"
	"github.com/osa030/pano360/internal/domain/clip"
)

// do runs a command under the sequencer lock. A failed command is logged
// and reported as EventCommandRejected.
func (s *Sequencer) do(name string, f func() error) error {
	s.mu.Lock()
	var err error
	if s.closed {
		err = ErrClosed
	} else {
		err = f()
	}
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: command rejected: command=%s session=%s phase=%s", name, s.session.id, s.session.phase)
		s.sendEventLocked(Event{Type: EventCommandRejected, Index: -1, Command: name, Err: err})
	}
	pending := s.takePendingLocked()
	s.mu.Unlock()

	runPending(pending)
	return err
}

// Start begins a run over the playlist range [startIndex, endIndex).
// endIndex may be playlist.EndOfList. The first clip is validated and
// assigned before Start returns; nothing changes on failure.
func (s *Sequencer) Start(startIndex, endIndex int) error {
	return s.do("start", func() error {
		if s.session.phase != PhaseIdle {
			return ErrAlreadyRunning
		}
		if s.playlist == nil {
			return errors.Mark(errors.New("no playlist assigned"), ErrConfiguration)
		}
		lo, hi, err := s.playlist.ResolveRange(startIndex, endIndex)
		if err != nil {
			return classify(err)
		}
		clips := make([]clip.Clip, len(s.playlist.Clips))
		copy(clips, s.playlist.Clips)

		first := clips[lo]
		if err := first.Validate(); err != nil {
			return classify(err)
		}
		if err := s.slots[0].assign(s.surfaces, first, lo); err != nil {
			return err
		}

		r := &run{done: make(chan struct{})}
		s.clips = clips
		s.lastRun = r
		s.session = session{
			id:        uuid.NewString(),
			phase:     PhasePreparing,
			preparing: s.slots[0],
			index:     lo,
			nextIndex: lo,
			hasNext:   true,
			lo:        lo,
			hi:        hi,
			loop:      s.config.Loop,
			run:       r,
		}
		if s.mask != nil {
			s.mask.Hide()
			s.session.hidden = true
		}
		if s.scenes != nil && s.config.Scene != "" {
			s.scenes.Preload(s.config.Scene)
		}

		zlog.Info().Msgf("playback: session started: session=%s playlist=%s range=[%d,%d) loop=%v",
			s.session.id, s.playlist.Name, lo, hi, s.session.loop)
		s.sendEventLocked(Event{Type: EventSessionStarted, Index: lo, ClipID: first.ID})
		return nil
	})
}

// Stop ends the run. The live clip leaves through its own transition; the
// session resets at the transition midpoint.
func (s *Sequencer) Stop() error {
	return s.do("stop", s.stopLocked)
}

func (s *Sequencer) stopLocked() error {
	ss := &s.session
	if ss.phase == PhaseIdle {
		return ErrNotRunning
	}
	if err := s.checkNotTransitioningLocked(); err != nil {
		return err
	}

	ss.loop = false
	ss.stopping = true
	if ss.live == nil {
		s.finishLocked(nil)
		return nil
	}
	if ss.preparing != nil {
		ss.preparing.release()
		ss.preparing = nil
		ss.hasNext = false
	}

	zlog.Info().Msgf("playback: stopping: session=%s index=%d", ss.id, ss.index)
	if err := s.armLocked(); err != nil {
		s.abortLocked(err)
		return err
	}
	s.stepArmedLocked()
	return nil
}

// Pause pauses the live clip.
func (s *Sequencer) Pause() error {
	return s.do("pause", func() error {
		ss := &s.session
		if err := s.checkLiveLocked(); err != nil {
			return err
		}
		if err := s.checkNotTransitioningLocked(); err != nil {
			return err
		}
		if ss.live.decoder.Paused() {
			return ErrAlreadyPaused
		}
		ss.live.decoder.Pause()
		zlog.Info().Msgf("playback: paused: session=%s index=%d", ss.id, ss.index)
		s.sendEventLocked(Event{Type: EventPaused, Index: ss.index, ClipID: ss.live.clip.ID})
		return nil
	})
}

// Resume resumes the paused live clip.
func (s *Sequencer) Resume() error {
	return s.do("resume", func() error {
		ss := &s.session
		if err := s.checkLiveLocked(); err != nil {
			return err
		}
		if err := s.checkNotTransitioningLocked(); err != nil {
			return err
		}
		if !ss.live.decoder.Paused() {
			return ErrNotPaused
		}
		ss.live.decoder.Resume()
		zlog.Info().Msgf("playback: resumed: session=%s index=%d", ss.id, ss.index)
		s.sendEventLocked(Event{Type: EventResumed, Index: ss.index, ClipID: ss.live.clip.ID})
		return nil
	})
}

// PlayNext leaves the live clip now through its transition. It is a no-op
// when the clip is already on its way out. On the last clip of a
// non-looping range it ends the run.
func (s *Sequencer) PlayNext() error {
	return s.do("next", func() error {
		ss := &s.session
		if err := s.checkLiveLocked(); err != nil {
			return err
		}
		if ss.armed || ss.clipFinished {
			zlog.Debug().Msgf("playback: next ignored, clip already leaving: session=%s index=%d", ss.id, ss.index)
			return nil
		}
		if !ss.hasNext {
			ss.stopping = true
		}

		if err := s.armLocked(); err != nil {
			if errors.Is(err, transition.ErrBusy) {
				ss.overridePending = true
				return nil
			}
			s.abortLocked(err)
			return err
		}
		s.stepArmedLocked()
		return nil
	})
}

// PlayPrevious jumps to the clip before the live one. On the first clip of
// the range it stops the run.
func (s *Sequencer) PlayPrevious() error {
	return s.do("previous", func() error {
		ss := &s.session
		if err := s.checkLiveLocked(); err != nil {
			return err
		}
		if ss.index-1 < ss.lo {
			return s.stopLocked()
		}
		return s.jumpLocked(ss.index - 1)
	})
}

// JumpToIndex makes clip i the next clip and leaves the live clip as soon
// as it is decoded.
func (s *Sequencer) JumpToIndex(i int) error {
	return s.do("jump", func() error {
		return s.jumpLocked(i)
	})
}

func (s *Sequencer) jumpLocked(i int) error {
	ss := &s.session
	if ss.phase == PhaseIdle {
		return ErrNotRunning
	}
	if ss.overridePending {
		return ErrJumpPending
	}
	if err := s.checkNotTransitioningLocked(); err != nil {
		return err
	}
	if i < ss.lo || i >= ss.hi {
		return errors.Mark(errors.Newf("jump index %d out of range [%d, %d)", i, ss.lo, ss.hi), ErrConfiguration)
	}
	if err := s.clips[i].Validate(); err != nil {
		return classify(err)
	}

	from := ss.currentIndex()
	if err := s.prepareLocked(i); err != nil {
		s.abortLocked(err)
		return err
	}
	if ss.live != nil {
		ss.overridePending = true
	}
	zlog.Info().Msgf("playback: jump: session=%s from=%d to=%d", ss.id, from, i)
	return nil
}

func (s *Sequencer) checkLiveLocked() error {
	if s.session.phase == PhaseIdle {
		return ErrNotRunning
	}
	if s.session.live == nil {
		return ErrNoLiveClip
	}
	return nil
}

// checkNotTransitioningLocked rejects commands while the live clip is
// leaving or any transition is still on screen.
func (s *Sequencer) checkNotTransitioningLocked() error {
	switch s.session.phase {
	case PhaseAwaitingSwap, PhaseAwaitingFinalMidpoint:
		return ErrSwapInProgress
	}
	if s.coord.IsRunning() {
		return ErrTransitionRunning
	}
	return nil
}
