package scan

import "time"

// DACFullScale is the number of codes on each 16-bit scan axis.
const DACFullScale = 65536

// PixelDwell is the nominal acquisition time per pixel used for estimates.
const PixelDwell = 10 * time.Microsecond

// Geometry captures the zoom and downsampling chosen before acquisition.
// The zero value means "unknown" and skips validation.
type Geometry struct {
	Zoom       int
	Downsample int
}

// IsZero reports whether no geometry was given.
func (g Geometry) IsZero() bool { return g.Zoom == 0 && g.Downsample == 0 }

func (g Geometry) factors() (zoom, down int) {
	zoom, down = g.Zoom, g.Downsample
	if zoom < 1 {
		zoom = 1
	}
	if down < 1 {
		down = 1
	}
	return zoom, down
}

// LinearSize is the number of pixels along each axis of a square scan.
func (g Geometry) LinearSize() int {
	zoom, down := g.factors()
	return max(1, DACFullScale/(zoom*down))
}

// CodeWindow returns the first and last DAC code swept on each axis and the
// code stride between pixels. The window is centred on mid-scale.
func (g Geometry) CodeWindow() (first, last, stride int) {
	zoom, down := g.factors()
	span := DACFullScale / zoom
	first = DACFullScale/2 - span/2
	stride = down
	last = first + (g.LinearSize()-1)*stride
	return first, last, stride
}

// EstimatedDuration is the nominal time to acquire the full square scan.
func (g Geometry) EstimatedDuration() time.Duration {
	n := g.LinearSize()
	return time.Duration(n*n) * PixelDwell
}

// Validate checks a parsed extent against the geometry.
func (g Geometry) Validate(rows, cols int) error {
	if g.IsZero() {
		return nil
	}
	if g.Zoom < 1 || g.Downsample < 1 {
		return Malformedf("zoom %d and downsample %d must both be at least 1", g.Zoom, g.Downsample)
	}
	n := g.LinearSize()
	if rows != n || cols != n {
		return Malformedf("grid is %dx%d but zoom %dx / downsample %dx gives %dx%d",
			rows, cols, g.Zoom, g.Downsample, n, n)
	}
	return nil
}
