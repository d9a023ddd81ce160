package playback

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/domain/clip"
)

// Slot is one of the two playback buffers. It owns its decoder for the
// sequencer lifetime and a surface for as long as a clip is assigned.
type Slot struct {
	id       int
	decoder  Decoder
	surface  Surface
	clip     clip.Clip
	index    int
	assigned bool
}

func newSlot(id int, d Decoder) *Slot {
	return &Slot{id: id, decoder: d, index: -1}
}

// ID returns the slot number (0 or 1).
func (s *Slot) ID() int { return s.id }

// Clip returns the assigned clip.
func (s *Slot) Clip() clip.Clip { return s.clip }

// Index returns the playlist index of the assigned clip, -1 when empty.
func (s *Slot) Index() int { return s.index }

// assign allocates a surface for c and starts decode preparation.
// On failure the slot is left empty.
func (s *Slot) assign(alloc SurfaceAllocator, c clip.Clip, index int) error {
	s.release()

	surface, err := alloc.Allocate(c)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "slot %d: allocate surface for clip %q", s.id, c.ID), ErrResource)
	}
	if err := s.decoder.Prepare(c); err != nil {
		surface.Release()
		return errors.Mark(errors.Wrapf(err, "slot %d: prepare clip %q", s.id, c.ID), ErrResource)
	}

	s.surface = surface
	s.clip = c
	s.index = index
	s.assigned = true
	zlog.Debug().Msgf("playback: slot assigned: slot=%d index=%d clip=%s surface=%s", s.id, index, c.ID, surface.ID())
	return nil
}

// release stops the decoder and frees the surface.
func (s *Slot) release() {
	if !s.assigned {
		return
	}
	s.decoder.Stop()
	if s.surface != nil {
		s.surface.Release()
	}
	zlog.Debug().Msgf("playback: slot released: slot=%d index=%d clip=%s", s.id, s.index, s.clip.ID)
	s.surface = nil
	s.clip = clip.Clip{}
	s.index = -1
	s.assigned = false
}

func (s *Slot) ready() bool {
	return s.assigned && s.decoder.Ready()
}

// failure returns the decoder failure of an assigned slot.
func (s *Slot) failure() error {
	if !s.assigned {
		return nil
	}
	if err := s.decoder.Failed(); err != nil {
		return errors.Mark(errors.Wrapf(err, "slot %d: decode clip %q", s.id, s.clip.ID), ErrResource)
	}
	return nil
}
