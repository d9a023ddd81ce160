package playback

import (
	"time"

	"github.com/osa030/pano360/internal/app/transition"
	"github.com/osa030/pano360/internal/domain/clip"
)

// Decoder decodes one clip at a time for a slot. Prepare starts an
// asynchronous preparation; Ready reports when the first frame is available.
type Decoder interface {
	Prepare(c clip.Clip) error
	Ready() bool
	Failed() error
	Play()
	Pause()
	Resume()
	Paused() bool
	Stop()
	Position() time.Duration
	Finished() bool
}

// Surface is a render target owned by a slot while a clip is assigned.
type Surface interface {
	ID() string
	Release()
}

// SurfaceAllocator creates a fresh surface for each assigned clip.
type SurfaceAllocator interface {
	Allocate(c clip.Clip) (Surface, error)
}

// VisibilityMask hides the rest of the scene while a session plays.
type VisibilityMask interface {
	Hide()
	Show()
}

// ScenePreloader loads the scene shown after a session ends.
type ScenePreloader interface {
	Preload(name string)
	Activate(name string)
}

// Coordinator runs transitions. *transition.Coordinator implements it.
type Coordinator interface {
	Trigger(desc *clip.TransitionDescriptor, delay time.Duration) (*transition.Handle, error)
	IsRunning() bool
	Abort()
	AddListener(l transition.Listeners)
}

var _ Coordinator = (*transition.Coordinator)(nil)

// Deps are the collaborators of a Sequencer. Mask and Scenes are optional.
type Deps struct {
	Decoders    [2]Decoder
	Surfaces    SurfaceAllocator
	Coordinator Coordinator
	Mask        VisibilityMask
	Scenes      ScenePreloader
}
