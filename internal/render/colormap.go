package render

import (
	"image/color"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/user/stm_scan_go/internal/scan"
)

// Colormap maps a normalized level in [0,1] to a color. Level 0 is the
// dark/low end, level 1 the bright/high end.
type Colormap interface {
	At(level float64) color.RGBA
}

// Colormap names.
const (
	Grayscale = "grayscale"
	Viridis   = "viridis"
	Inferno   = "inferno"
	BlueRed   = "bluered"
	BlackBody = "blackbody"
	Kindlmann = "kindlmann"
)

var colormaps = map[string]func() Colormap{
	Grayscale: func() Colormap { return grayscale{} },
	Viridis:   func() Colormap { return newGradient(viridisStops) },
	Inferno:   func() Colormap { return newGradient(infernoStops) },
	BlueRed:   func() Colormap { return newContinuous(moreland.SmoothBlueRed()) },
	BlackBody: func() Colormap { return newContinuous(moreland.BlackBody()) },
	Kindlmann: func() Colormap { return newContinuous(moreland.Kindlmann()) },
}

// ColormapNames lists the supported colormaps, sorted.
func ColormapNames() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupColormap returns the named colormap. "gray" and "grey" are
// accepted for grayscale.
func LookupColormap(name string) (Colormap, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "gray", "grey", "greyscale":
		key = Grayscale
	}
	mk, ok := colormaps[key]
	if !ok {
		return nil, scan.Malformedf("unknown colormap %q (want one of %s)", name, strings.Join(ColormapNames(), ", "))
	}
	return mk(), nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type grayscale struct{}

func (grayscale) At(level float64) color.RGBA {
	y := uint8(math.Round(clamp01(level) * 255))
	return color.RGBA{R: y, G: y, B: y, A: 0xff}
}

// gradient interpolates linearly between evenly spaced stops.
type gradient struct {
	stops []color.RGBA
}

func newGradient(stops []color.RGBA) gradient { return gradient{stops: stops} }

func (g gradient) At(level float64) color.RGBA {
	pos := clamp01(level) * float64(len(g.stops)-1)
	i := int(math.Floor(pos))
	if i >= len(g.stops)-1 {
		return g.stops[len(g.stops)-1]
	}
	frac := pos - float64(i)
	a, b := g.stops[i], g.stops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + frac*(float64(y)-float64(x))))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}

// continuous wraps a gonum color map over [0,1].
type continuous struct {
	cm palette.ColorMap
}

func newContinuous(cm palette.ColorMap) continuous {
	cm.SetMin(0)
	cm.SetMax(1)
	cm.SetAlpha(1)
	return continuous{cm: cm}
}

func (c continuous) At(level float64) color.RGBA {
	col, err := c.cm.At(clamp01(level))
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBAModel.Convert(col).(color.RGBA)
}

// Sampled colormap stops, low to high.
var viridisStops = []color.RGBA{
	{0x44, 0x01, 0x54, 0xff}, {0x48, 0x28, 0x78, 0xff}, {0x3e, 0x49, 0x89, 0xff},
	{0x31, 0x68, 0x8e, 0xff}, {0x26, 0x82, 0x8e, 0xff}, {0x1f, 0x9e, 0x89, 0xff},
	{0x35, 0xb7, 0x79, 0xff}, {0x6e, 0xce, 0x58, 0xff}, {0xb5, 0xde, 0x2b, 0xff},
	{0xfd, 0xe7, 0x25, 0xff},
}

var infernoStops = []color.RGBA{
	{0x00, 0x00, 0x04, 0xff}, {0x1b, 0x0c, 0x41, 0xff}, {0x4a, 0x0c, 0x6b, 0xff},
	{0x78, 0x1c, 0x6d, 0xff}, {0xa5, 0x2c, 0x60, 0xff}, {0xcf, 0x44, 0x46, 0xff},
	{0xed, 0x69, 0x25, 0xff}, {0xfb, 0x9b, 0x06, 0xff}, {0xf7, 0xd1, 0x3d, 0xff},
	{0xfc, 0xff, 0xa4, 0xff},
}

// Palette samples a colormap into n discrete colors for gonum heat maps.
func Palette(cm Colormap, n int) palette.Palette {
	if n < 2 {
		n = 2
	}
	colors := make(sampled, n)
	for i := range colors {
		colors[i] = cm.At(float64(i) / float64(n-1))
	}
	return colors
}

type sampled []color.Color

func (s sampled) Colors() []color.Color { return s }

// ColorMap adapts a Colormap to gonum's palette.ColorMap over [min, max],
// so it can drive a plotter.ColorBar.
func ColorMap(cm Colormap, lo, hi float64) palette.ColorMap {
	return &valueMap{cm: cm, min: lo, max: hi, alpha: 1}
}

type valueMap struct {
	cm       Colormap
	min, max float64
	alpha    float64
}

func (m *valueMap) At(v float64) (color.Color, error) {
	return m.cm.At(level(v, m.min, m.max)), nil
}

func (m *valueMap) Max() float64 { return m.max }
func (m *valueMap) SetMax(v float64) { m.max = v }
func (m *valueMap) Min() float64 { return m.min }
func (m *valueMap) SetMin(v float64) { m.min = v }
func (m *valueMap) Alpha() float64 { return m.alpha }
func (m *valueMap) SetAlpha(a float64) { m.alpha = a }
func (m *valueMap) Palette(n int) palette.Palette { return Palette(m.cm, n) }
