package sim

import (
	"sort"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// SceneObject is a named object of the surrounding scene.
type SceneObject struct {
	Name string
	Tags []string
}

// MaskConfig holds visibility mask configuration.
type MaskConfig struct {
	Enabled       bool     // Hide the scene while a session plays
	Blacklist     []string // Object names never hidden
	BlacklistTags []string // Objects with any of these tags are never hidden
}

// VisibilityMask hides scene objects while a session plays.
type VisibilityMask struct {
	mu      sync.Mutex
	config  MaskConfig
	objects []SceneObject
	hidden  map[string]bool
}

// NewVisibilityMask creates a mask over objects.
func NewVisibilityMask(config MaskConfig, objects []SceneObject) *VisibilityMask {
	return &VisibilityMask{config: config, objects: objects, hidden: make(map[string]bool)}
}

// Hide hides every object that is not blacklisted.
func (m *VisibilityMask) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.config.Enabled {
		return
	}

	for _, o := range m.objects {
		if m.exemptLocked(o) {
			continue
		}
		m.hidden[o.Name] = true
	}
	zlog.Debug().Msgf("sim: scene hidden: objects=%d", len(m.hidden))
}

// Show restores every object hidden by Hide.
func (m *VisibilityMask) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.hidden) == 0 {
		return
	}
	zlog.Debug().Msgf("sim: scene restored: objects=%d", len(m.hidden))
	m.hidden = make(map[string]bool)
}

// Hidden returns the sorted names of hidden objects.
func (m *VisibilityMask) Hidden() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := lo.Keys(m.hidden)
	sort.Strings(names)
	return names
}

func (m *VisibilityMask) exemptLocked(o SceneObject) bool {
	if lo.Contains(m.config.Blacklist, o.Name) {
		return true
	}
	return lo.Some(m.config.BlacklistTags, o.Tags)
}

// ScenePreloader records scene preload and activation requests.
type ScenePreloader struct {
	mu        sync.Mutex
	preloaded []string
	activated []string
}

// NewScenePreloader creates a preloader.
func NewScenePreloader() *ScenePreloader {
	return &ScenePreloader{}
}

// Preload starts loading the named scene.
func (p *ScenePreloader) Preload(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lo.Contains(p.preloaded, name) {
		return
	}
	p.preloaded = append(p.preloaded, name)
	zlog.Info().Msgf("sim: scene preloading: name=%s", name)
}

// Activate switches to the named scene.
func (p *ScenePreloader) Activate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activated = append(p.activated, name)
	p.preloaded = lo.Without(p.preloaded, name)
	zlog.Info().Msgf("sim: scene activated: name=%s", name)
}

// Activated returns the activation history.
func (p *ScenePreloader) Activated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.activated...)
}
