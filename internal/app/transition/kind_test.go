package transition

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/domain/clip"
)

func TestRegistered(t *testing.T) {
	assert.Equal(t, []string{"dissolve", "fade", "flip"}, Registered())
}

func TestKind_Decode(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		settings map[string]any
		want     any
		wantErr  bool
	}{
		{
			name: "fade defaults",
			kind: "fade",
			want: FadeSettings{Color: "#000000"},
		},
		{
			name:     "fade with color",
			kind:     "fade",
			settings: map[string]any{"color": "#ff8800"},
			want:     FadeSettings{Color: "#ff8800"},
		},
		{
			name:     "fade with invalid color",
			kind:     "fade",
			settings: map[string]any{"color": "red"},
			wantErr:  true,
		},
		{
			name:     "dissolve softness from integer",
			kind:     "dissolve",
			settings: map[string]any{"softness": 1},
			want:     DissolveSettings{Softness: 1},
		},
		{
			name:     "dissolve softness out of range",
			kind:     "dissolve",
			settings: map[string]any{"softness": 2.5},
			wantErr:  true,
		},
		{
			name:     "unknown setting",
			kind:     "flip",
			settings: map[string]any{"spin": true},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Lookup(tt.kind)
			require.NoError(t, err)

			got, err := k.Decode(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateDescriptor(t *testing.T) {
	err := ValidateDescriptor(&clip.TransitionDescriptor{Kind: "wipe", TransitionTime: time.Second})
	assert.True(t, errors.Is(err, ErrUnknownKind))

	err = ValidateDescriptor(&clip.TransitionDescriptor{Kind: "fade", TransitionTime: -time.Second})
	assert.Error(t, err)

	err = ValidateDescriptor(&clip.TransitionDescriptor{Kind: "fade", TransitionTime: time.Second})
	assert.NoError(t, err)
}
