package render

import (
	"strings"

	"github.com/user/stm_scan_go/internal/scan"
)

// Normalization selects how values are scaled onto [0,1].
type Normalization string

const (
	// NormLinear scales to the observed minimum and maximum.
	NormLinear Normalization = "linear"
	// NormFixed scales to fixed physical bounds; values outside clamp.
	NormFixed Normalization = "fixed"
)

// Origin selects where row 0 ends up in the image.
type Origin string

const (
	OriginUpper Origin = "upper"
	OriginLower Origin = "lower"
)

// Default fixed bounds match the +/-6 height units the viewer shows.
const (
	DefaultFixedMin = -6.0
	DefaultFixedMax = 6.0
)

// Config controls rendering.
type Config struct {
	Colormap      string
	Normalization Normalization
	FixedMin      float64
	FixedMax      float64
	Origin        Origin
}

// DefaultConfig returns linear grayscale with row 0 at the top.
func DefaultConfig() Config {
	return Config{
		Colormap:      Grayscale,
		Normalization: NormLinear,
		FixedMin:      DefaultFixedMin,
		FixedMax:      DefaultFixedMax,
		Origin:        OriginUpper,
	}
}

// ParseNormalization accepts "linear" (also "minmax", "auto") and "fixed".
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "minmax", "auto":
		return NormLinear, nil
	case "fixed", "physical":
		return NormFixed, nil
	}
	return NormLinear, scan.Malformedf("unknown normalization %q", s)
}

// ParseOrigin accepts "upper" and "lower".
func ParseOrigin(s string) (Origin, error) {
	switch Origin(strings.ToLower(strings.TrimSpace(s))) {
	case "", OriginUpper:
		return OriginUpper, nil
	case OriginLower:
		return OriginLower, nil
	}
	return OriginUpper, scan.Malformedf("unknown origin %q", s)
}

// Validate reports configuration errors as malformed input.
func (c Config) Validate() error {
	if _, err := LookupColormap(c.Colormap); err != nil {
		return err
	}
	switch c.Normalization {
	case "", NormLinear:
	case NormFixed:
		if !(c.FixedMin < c.FixedMax) {
			return scan.Malformedf("fixed bounds [%g, %g] are empty", c.FixedMin, c.FixedMax)
		}
	default:
		return scan.Malformedf("unknown normalization %q", c.Normalization)
	}
	switch c.Origin {
	case "", OriginUpper, OriginLower:
	default:
		return scan.Malformedf("unknown origin %q", c.Origin)
	}
	return nil
}

// Bounds returns the value range that maps onto levels 0..1.
func (c Config) Bounds(f *scan.Frame) (lo, hi float64) {
	if c.Normalization == NormFixed {
		return c.FixedMin, c.FixedMax
	}
	return f.Bounds()
}

// level normalizes v into [0,1]; a degenerate range maps to the middle.
func level(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	return clamp01((v - lo) / (hi - lo))
}
