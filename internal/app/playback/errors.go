package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/pano360/internal/domain/clip"
	"github.com/osa030/pano360/internal/domain/playlist"
)

// Error kinds. Concrete errors are marked with one of these so callers can
// test with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConcurrency   = errors.New("command rejected")
	ErrResource      = errors.New("resource error")
)

// Command rejections
var (
	ErrAlreadyRunning    = errors.Mark(errors.New("a run is already active"), ErrConcurrency)
	ErrNotRunning        = errors.Mark(errors.New("no run active"), ErrConcurrency)
	ErrTransitionRunning = errors.Mark(errors.New("a transition is running"), ErrConcurrency)
	ErrSwapInProgress    = errors.Mark(errors.New("a swap is in progress"), ErrConcurrency)
	ErrJumpPending       = errors.Mark(errors.New("a jump is already pending"), ErrConcurrency)
	ErrNoLiveClip        = errors.Mark(errors.New("no clip is live"), ErrConcurrency)
	ErrAlreadyPaused     = errors.Mark(errors.New("live clip is already paused"), ErrConcurrency)
	ErrNotPaused         = errors.Mark(errors.New("live clip is not paused"), ErrConcurrency)
)

// ErrClosed is the terminal error of a run torn down by Close.
var ErrClosed = errors.New("sequencer closed")

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsConcurrency reports whether err is a command rejection.
func IsConcurrency(err error) bool { return errors.Is(err, ErrConcurrency) }

// IsResource reports whether err is a resource error.
func IsResource(err error) bool { return errors.Is(err, ErrResource) }

// classify marks domain validation errors with the configuration kind.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, clip.ErrInvalid) || errors.Is(err, playlist.ErrInvalidRange) {
		return errors.Mark(err, ErrConfiguration)
	}
	return err
}
