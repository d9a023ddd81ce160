package transition

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/osa030/pano360/internal/domain/clip"
)

// ErrUnknownKind is returned for kinds that were never registered.
var ErrUnknownKind = errors.New("unknown transition kind")

// Kind describes one family of transition effects. The coordinator only
// cares about timing; a Kind validates the settings handed to the renderer.
type Kind interface {
	// Name returns the kind name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// Decode validates settings and returns the typed settings value.
	Decode(settings map[string]any) (any, error)
}

// FadeSettings are the settings of the "fade" kind.
type FadeSettings struct {
	Color string `mapstructure:"color" default:"#000000" validate:"hexcolor"`
}

// DissolveSettings are the settings of the "dissolve" kind.
type DissolveSettings struct {
	Softness float64 `mapstructure:"softness" default:"0.5" validate:"gte=0,lte=1"`
}

// FlipSettings are the settings of the "flip" kind.
type FlipSettings struct {
	Horizontal bool   `mapstructure:"horizontal"`
	Vertical   bool   `mapstructure:"vertical"`
	Color      string `mapstructure:"color" default:"#ffffff" validate:"hexcolor"`
}

type settingsKind[T any] struct {
	name        string
	description string
}

func (k settingsKind[T]) Name() string        { return k.name }
func (k settingsKind[T]) Description() string { return k.description }

func (k settingsKind[T]) Decode(settings map[string]any) (any, error) {
	var out T

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to decode settings", k.name)
	}

	if err := defaults.Set(&out); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to set defaults", k.name)
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return nil, errors.Wrapf(err, "%s: validation failed", k.name)
	}
	return out, nil
}

// registry holds registered kind factories.
var registry = make(map[string]func() Kind)

// Register registers a kind factory.
func Register(name string, factory func() Kind) {
	registry[name] = factory
}

// Registered returns all registered kind names, sorted.
func Registered() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Lookup returns the kind registered under name.
func Lookup(name string) (Kind, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("%s (registered: %v)", name, Registered()), ErrUnknownKind)
	}
	return factory(), nil
}

// ValidateDescriptor checks timing and kind settings of a descriptor.
func ValidateDescriptor(desc *clip.TransitionDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	kind, err := Lookup(desc.Kind)
	if err != nil {
		return err
	}
	if _, err := kind.Decode(desc.Settings); err != nil {
		return err
	}
	return nil
}

func init() {
	Register("fade", func() Kind {
		return settingsKind[FadeSettings]{name: "fade", description: "Fades through a solid color"}
	})
	Register("dissolve", func() Kind {
		return settingsKind[DissolveSettings]{name: "dissolve", description: "Dissolves the outgoing clip into the incoming one"}
	})
	Register("flip", func() Kind {
		return settingsKind[FlipSettings]{name: "flip", description: "Flips the view around an axis"}
	})
}
