package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/overlay/compositor"
	pix "github.com/gogpu/overlay/internal/image"
	"github.com/gogpu/overlay/internal/surface"
)

// Config is the YAML form of the session options.
//
//	backend: dispmanx
//	display: 0
//	vignette: /opt/mirror/vignette.png
//	pitch_align: 32
//	layers: {vignette: 2, fade: 3}
//	fade:
//	  color: "#000000"
//	  duration: 500ms
//	  step: 5
type Config struct {
	// Backend names a registered compositor. Empty picks the best
	// available one.
	Backend string `yaml:"backend"`

	// Width and Height size the display of backends without hardware to
	// query.
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`

	Display    int         `yaml:"display"`
	Vignette   string      `yaml:"vignette,omitempty"`
	PitchAlign int         `yaml:"pitch_align"`
	Layers     LayerConfig `yaml:"layers"`
	Fade       FadeConfig  `yaml:"fade"`
}

// LayerConfig holds the layer depths.
type LayerConfig struct {
	Vignette int32 `yaml:"vignette"`
	Fade     int32 `yaml:"fade"`
}

// FadeConfig describes the fade plane and its default ramp.
type FadeConfig struct {
	// Color is a "#rrggbb" or "#rgb" hex color.
	Color    string        `yaml:"color"`
	Duration time.Duration `yaml:"duration"`
	Step     int           `yaml:"step"`
}

// DefaultConfig returns the configuration matching Init's defaults.
func DefaultConfig() Config {
	return Config{
		PitchAlign: surface.DefaultAlign,
		Layers:     LayerConfig{Vignette: DefaultVignetteLayer, Fade: DefaultFadeLayer},
		Fade: FadeConfig{
			Color:    "#000000",
			Duration: DefaultDuration,
			Step:     DefaultStep,
		},
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("overlay: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML config document and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: config: %w", ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// FadeColor returns the packed RGBA4444 fade color. The alpha nibble is
// always 15.
func (c Config) FadeColor() (uint16, error) {
	col, err := colorful.Hex(c.Fade.Color)
	if err != nil {
		return 0, fmt.Errorf("%w: fade color %q: %w", ErrInvalidArgument, c.Fade.Color, err)
	}
	r, g, b := col.RGB255()
	return pix.Pack(r, g, b, Opaque), nil
}

// Validate checks every field with the same rules Init applies.
func (c Config) Validate() error {
	if _, err := c.FadeColor(); err != nil {
		return err
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrInvalidArgument, c.Width, c.Height)
	}
	o := defaultOptions()
	for _, opt := range c.options() {
		opt(&o)
	}
	return o.validate()
}

// Options converts c into Init options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.options(), nil
}

func (c Config) options() []Option {
	color, _ := c.FadeColor()
	return []Option{
		WithBackend(c.Backend, compositor.Options{Width: c.Width, Height: c.Height}),
		WithDisplay(c.Display),
		WithPitchAlign(c.PitchAlign),
		WithLayers(c.Layers.Vignette, c.Layers.Fade),
		WithFadeColor(color),
		WithDefaults(c.Fade.Duration, c.Fade.Step),
	}
}
