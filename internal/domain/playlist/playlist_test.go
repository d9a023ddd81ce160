package playlist

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/domain/clip"
)

func clips(n int) []clip.Clip {
	out := make([]clip.Clip, n)
	for i := range out {
		out[i] = clip.Clip{
			ID:           string(rune('a' + i)),
			Source:       "src",
			Duration:     10 * time.Second,
			EndOffset:    clip.ToEnd,
			PlaybackRate: 1,
			Volume:       1,
		}
	}
	return out
}

func TestPlaylist_IDs(t *testing.T) {
	tests := []struct {
		name     string
		clips    []clip.Clip
		expected []string
	}{
		{
			name:     "empty playlist",
			clips:    []clip.Clip{},
			expected: []string{},
		},
		{
			name:     "multiple clips",
			clips:    clips(3),
			expected: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("test", tt.clips)
			assert.Equal(t, tt.expected, p.IDs())
		})
	}
}

func TestPlaylist_TotalDuration(t *testing.T) {
	cs := clips(2)
	cs[1].StartOffset = 4 * time.Second
	cs[1].PlaybackRate = 2

	p := New("test", cs)
	assert.Equal(t, 13*time.Second, p.TotalDuration())
}

func TestPlaylist_New_CopiesClips(t *testing.T) {
	cs := clips(2)
	p := New("test", cs)
	cs[0].ID = "changed"

	got, ok := p.At(0)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestPlaylist_ResolveRange(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		start   int
		end     int
		wantLo  int
		wantHi  int
		wantErr bool
	}{
		{name: "whole list", n: 3, start: 0, end: EndOfList, wantLo: 0, wantHi: 3},
		{name: "sub range", n: 3, start: 1, end: 2, wantLo: 1, wantHi: 2},
		{name: "explicit end equal to length", n: 3, start: 0, end: 3, wantLo: 0, wantHi: 3},
		{name: "empty list", n: 0, start: 0, end: EndOfList, wantErr: true},
		{name: "negative start", n: 3, start: -1, end: EndOfList, wantErr: true},
		{name: "start past end of list", n: 3, start: 3, end: EndOfList, wantErr: true},
		{name: "end before start", n: 3, start: 2, end: 1, wantErr: true},
		{name: "end equal to start", n: 3, start: 1, end: 1, wantErr: true},
		{name: "end past list", n: 3, start: 0, end: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("test", clips(tt.n))
			lo, hi, err := p.ResolveRange(tt.start, tt.end)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRange))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
		})
	}
}
