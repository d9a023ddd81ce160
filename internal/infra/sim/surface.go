package sim

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/domain/clip"
)

// ErrAllocate is returned for sources configured to fail allocation.
var ErrAllocate = errors.New("surface allocation failed")

// SurfaceConfig holds surface allocator configuration.
type SurfaceConfig struct {
	AntiAliasing int    // MSAA sample count carried on each surface
	Layout3D     string // Stereo layout carried on each surface
	Rotation     float64
	FailSources  []string
}

// Surface is a simulated render target.
type Surface struct {
	id     string
	clipID string
	alloc  *SurfaceAllocator
	once   sync.Once
}

// ID returns the surface id.
func (s *Surface) ID() string { return s.id }

// Release returns the surface to the allocator. Repeated calls are ignored.
func (s *Surface) Release() {
	s.once.Do(func() { s.alloc.release(s) })
}

// SurfaceAllocator hands out surfaces and counts the live ones.
type SurfaceAllocator struct {
	mu     sync.Mutex
	config SurfaceConfig
	live   map[string]*Surface
	total  int
}

// NewSurfaceAllocator creates an allocator.
func NewSurfaceAllocator(config SurfaceConfig) *SurfaceAllocator {
	return &SurfaceAllocator{config: config, live: make(map[string]*Surface)}
}

// Allocate creates a surface for c.
func (a *SurfaceAllocator) Allocate(c clip.Clip) (playback.Surface, error) {
	if lo.Contains(a.config.FailSources, c.Source) {
		return nil, errors.Wrapf(ErrAllocate, "source %s", c.Source)
	}

	s := &Surface{id: uuid.NewString(), clipID: c.ID, alloc: a}
	a.mu.Lock()
	a.live[s.id] = s
	a.total++
	a.mu.Unlock()

	zlog.Debug().Msgf("sim: surface allocated: id=%s clip=%s aa=%d layout=%s rotation=%v",
		s.id, c.ID, a.config.AntiAliasing, a.config.Layout3D, a.config.Rotation)
	return s, nil
}

func (a *SurfaceAllocator) release(s *Surface) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.live, s.id)
	zlog.Debug().Msgf("sim: surface released: id=%s clip=%s", s.id, s.clipID)
}

// Live returns the number of surfaces not yet released.
func (a *SurfaceAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Total returns the number of surfaces ever allocated.
func (a *SurfaceAllocator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
