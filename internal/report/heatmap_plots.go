package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/scan"
)

const (
	heatmapWidth  = 620
	heatmapHeight = 520
	colorBarWidth = 80
	paletteColors = 256
)

// PlotFormats lists the encodings CreateHeatmapPlot can write.
var PlotFormats = []string{"png", "svg", "pdf", "eps", "jpg", "jpeg", "tif", "tiff"}

// PlotFormat returns the plot encoding for a file extension, or "" when the
// extension is not one gonum/plot can write.
func PlotFormat(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, f := range PlotFormats {
		if f == ext {
			return f
		}
	}
	return ""
}

// frameGrid exposes a frame as a plotter.GridXYZ. X is the column index;
// Y is the row index, flipped when row 0 should sit at the top.
type frameGrid struct {
	f    *scan.Frame
	flip bool
}

func (g frameGrid) Dims() (c, r int) {
	rows, cols := g.f.Dims()
	return cols, rows
}

func (g frameGrid) Z(c, r int) float64 {
	if g.flip {
		rows, _ := g.f.Dims()
		r = rows - 1 - r
	}
	return g.f.At(r, c)
}

func (g frameGrid) X(c int) float64 { return float64(c) }
func (g frameGrid) Y(r int) float64 { return float64(r) }

// rowTicker relabels Y ticks with frame row numbers when the grid is flipped.
type rowTicker struct {
	rows int
	flip bool
}

func (t rowTicker) Ticks(lo, hi float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(lo, hi)
	if !t.flip {
		return ticks
	}
	for i := range ticks {
		if ticks[i].Label == "" {
			continue
		}
		ticks[i].Label = strconv.FormatFloat(float64(t.rows-1)-ticks[i].Value, 'f', -1, 64)
	}
	return ticks
}

// CreateHeatmapPlot draws the frame as an annotated heat map with axes and
// a colour bar, using the same normalization and colormap as the raster.
func CreateHeatmapPlot(f *scan.Frame, cfg render.Config, title string, format string) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("no frame to plot heatmap")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if PlotFormat(format) == "" {
		return nil, scan.Malformedf("no plot encoder for %q", format)
	}
	cm, err := render.LookupColormap(cfg.Colormap)
	if err != nil {
		return nil, err
	}

	rows, cols := f.Dims()
	flip := cfg.Origin != render.OriginLower
	lo, hi := cfg.Bounds(f)
	if lo == hi {
		// A flat frame renders mid-scale, as in the raster.
		lo, hi = lo-0.5, hi+0.5
	}

	hm := plotter.NewHeatMap(frameGrid{f: f, flip: flip}, render.Palette(cm, paletteColors))
	hm.Min = lo
	hm.Max = hi
	hm.Underflow = cm.At(0)
	hm.Overflow = cm.At(1)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = fmt.Sprintf("Column (%d)", cols)
	p.Y.Label.Text = fmt.Sprintf("Row (%d)", rows)
	p.Y.Tick.Marker = rowTicker{rows: rows, flip: flip}
	p.Add(hm)
	p.X.Min = -0.5
	p.X.Max = float64(cols) - 0.5
	p.Y.Min = -0.5
	p.Y.Max = float64(rows) - 0.5

	bar := &plotter.ColorBar{
		ColorMap: render.ColorMap(cm, lo, hi),
		Vertical: true,
		Colors:   paletteColors,
	}
	bp := plot.New()
	bp.Add(bar)
	bp.HideX()
	bp.Y.Label.Text = "Value"
	bp.Title.Text = " "

	c, err := draw.NewFormattedCanvas(vg.Points(heatmapWidth), vg.Points(heatmapHeight), PlotFormat(format))
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap canvas: %v", err)
	}
	dc := draw.New(c)
	p.Draw(draw.Crop(dc, 0, -vg.Points(colorBarWidth), 0, 0))
	bp.Draw(draw.Crop(dc, vg.Points(heatmapWidth-colorBarWidth), 0, 0, 0))

	buf := new(bytes.Buffer)
	if _, err := c.WriteTo(buf); err != nil {
		return nil, scan.IOErrorf("failed to write heatmap: %v", err)
	}
	return buf.Bytes(), nil
}
