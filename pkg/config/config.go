// Package config holds the knobs for aligning a series, and doubles as
// the report of what was found: the shift for each file.
package config

import (
	"fmt"
	"image"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/diffalign/pkg/align"
	"github.com/abworrall/diffalign/pkg/diffio"
	"github.com/abworrall/diffalign/pkg/emath"
	"github.com/abworrall/diffalign/pkg/register"
)

type Config struct {
	Verbosity      int

	OverlapRatio   float64 // masked registration
	UpsampleFactor int     // unmasked registration, in 1/n pixel
	FillValue      float64 // for pixels shifted in from outside the image

	MaskFromZeros  bool     // zero pixels in the reference are unmeasured
	Invalid        []Region // e.g. the beam block, invalid in every image

	Peak           PeakConfig

	Workers        int
	OutputDir      string
	OutputFormat   string // "tif" or "hdr"

	Shifts         map[string]emath.Shift // filename -> shift that aligns it
}

// A Region is a rectangle of the detector, by row and column span.
type Region struct {
	Rows emath.Span
	Cols emath.Span
}

func (r Region) Rectangle(w, h int) image.Rectangle {
	r0, r1 := r.Rows.Resolve(h)
	c0, c1 := r.Cols.Resolve(w)
	return image.Rect(c0, r0, c1, r1)
}

type PeakConfig struct {
	Rows      emath.Span
	Cols      emath.Span
	Precision float64
}

func NewConfig() Config {
	return Config{
		OverlapRatio:   register.DefaultOverlapRatio,
		UpsampleFactor: register.DefaultUpsampleFactor,
		Peak:           PeakConfig{Precision: align.DefaultPrecision},
		Workers:        4,
		OutputDir:      ".",
		OutputFormat:   "tif",
		Shifts:         map[string]emath.Shift{},
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	if c.Shifts == nil {
		c.Shifts = map[string]emath.Shift{}
	}
	return c, err
}

// Load reads a YAML config file; anything it doesn't mention keeps its
// default.
func Load(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}

	c, err := newConfigFromYaml(contents)
	if err != nil {
		return Config{}, fmt.Errorf("config parse %s: %v", filename, err)
	}
	return c, nil
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Printf("Can't marshal config yaml: %v\n", err)
		return ""
	}
	return string(b)
}

// Finalize checks the values are usable, and fills in any that were left
// empty.
func (c *Config) Finalize() error {
	if !(c.OverlapRatio > 0 && c.OverlapRatio <= 1) {
		return fmt.Errorf("config overlapratio %v: %w", c.OverlapRatio, register.ErrOverlapRatio)
	}
	if c.UpsampleFactor < 1 {
		return fmt.Errorf("config upsamplefactor %d: %w", c.UpsampleFactor, register.ErrUpsampleFactor)
	}
	if c.Peak.Precision == 0 {
		c.Peak.Precision = align.DefaultPrecision
	}
	if !(c.Peak.Precision > 0 && c.Peak.Precision <= 1) {
		return fmt.Errorf("config peak precision %v: %w", c.Peak.Precision, align.ErrPrecision)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	switch c.OutputFormat {
	case "":
		c.OutputFormat = "tif"
	case "tif", "tiff", "hdr":
	default:
		return fmt.Errorf("config outputformat '%s' not one of tif, hdr", c.OutputFormat)
	}
	if c.Shifts == nil {
		c.Shifts = map[string]emath.Shift{}
	}
	return nil
}

func (c Config) RegisterOptions() []register.Option {
	return []register.Option{
		register.WithOverlapRatio(c.OverlapRatio),
		register.WithUpsampleFactor(c.UpsampleFactor),
	}
}

// Mask builds the mask for registering against reference: the invalid
// regions, plus any zero pixels if MaskFromZeros is set. If nothing is
// masked it returns nil, which gets the sub-pixel unmasked registration.
func (c Config) Mask(reference *emath.FloatGrid) *emath.Mask {
	if len(c.Invalid) == 0 && !c.MaskFromZeros {
		return nil
	}

	m := emath.NewMask(reference.Dx(), reference.Dy())
	if c.MaskFromZeros {
		m = diffio.MaskFromNonZero(reference)
	}
	for _, r := range c.Invalid {
		m.Invalidate(r.Rectangle(reference.Dx(), reference.Dy()))
	}
	return m
}
