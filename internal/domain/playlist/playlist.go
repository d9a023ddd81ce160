// Package playlist provides the Playlist domain entity.
package playlist

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/pano360/internal/domain/clip"
)

// EndOfList is the end index sentinel meaning "through the last clip".
const EndOfList = -1

// ErrInvalidRange marks start/end index failures.
var ErrInvalidRange = errors.New("invalid playlist range")

// Playlist is an ordered list of clips.
type Playlist struct {
	Name  string      // Display name
	Clips []clip.Clip // Clips in play order
}

// New creates a playlist holding a copy of clips.
func New(name string, clips []clip.Clip) *Playlist {
	c := make([]clip.Clip, len(clips))
	copy(c, clips)
	return &Playlist{Name: name, Clips: c}
}

// Len returns the number of clips.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Clips)
}

// At returns the clip at index i.
func (p *Playlist) At(i int) (clip.Clip, bool) {
	if i < 0 || i >= p.Len() {
		return clip.Clip{}, false
	}
	return p.Clips[i], true
}

// IDs returns all clip IDs in play order.
func (p *Playlist) IDs() []string {
	return lo.Map(p.Clips, func(c clip.Clip, _ int) string {
		return c.ID
	})
}

// TotalDuration returns the wall time of one pass over all clips.
func (p *Playlist) TotalDuration() time.Duration {
	return lo.SumBy(p.Clips, func(c clip.Clip) time.Duration {
		return c.PlayTime()
	})
}

// ResolveRange resolves a start index and an exclusive end index
// (or EndOfList) against the playlist.
func (p *Playlist) ResolveRange(start, end int) (int, int, error) {
	n := p.Len()
	if n == 0 {
		return 0, 0, errors.Mark(errors.New("no clips assigned"), ErrInvalidRange)
	}
	if start < 0 || start >= n {
		return 0, 0, errors.Mark(errors.Newf("start index %d out of range [0, %d)", start, n), ErrInvalidRange)
	}
	if end == EndOfList {
		return start, n, nil
	}
	if end <= start || end > n {
		return 0, 0, errors.Mark(errors.Newf("end index %d out of range (%d, %d]", end, start, n), ErrInvalidRange)
	}
	return start, end, nil
}
