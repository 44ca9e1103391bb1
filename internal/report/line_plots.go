package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/scan"
)

var (
	profileColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	thresholdColor = color.RGBA{R: 255, A: 255}
)

// CreateProfilePlot draws the height profile along one scan line as PNG.
func CreateProfilePlot(f *scan.Frame, row int) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("no frame to plot profile")
	}
	profile, err := analysis.RowProfile(f, row)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Line Profile (Row %d)", row)
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(profile))
	for i, v := range profile {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile line: %v", err)
	}
	line.Color = profileColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)

	return writePNG(p, 800, 400)
}

// CreateStabilityPlot draws a point stream as a time series with dashed
// lines one threshold above and below its mean.
func CreateStabilityPlot(points []float64, res *analysis.StabilityResult) ([]byte, error) {
	if len(points) == 0 || res == nil {
		return nil, fmt.Errorf("no point samples to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Z-Stability (std %.3f, threshold %.2f)", res.StdDev, res.Threshold)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Height"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(points))
	for i, v := range points {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	series, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create stability line: %v", err)
	}
	series.Color = profileColor
	p.Add(series)
	p.Legend.Add("height", series)

	end := float64(len(points) - 1)
	for _, off := range []float64{res.Threshold, -res.Threshold} {
		y := res.Mean + off
		l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: end, Y: y}})
		if err != nil {
			return nil, fmt.Errorf("failed to create threshold line: %v", err)
		}
		l.Color = thresholdColor
		l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("mean %+.2f", off), l)
	}

	meanLine, err := plotter.NewLine(plotter.XYs{{X: 0, Y: res.Mean}, {X: end, Y: res.Mean}})
	if err != nil {
		return nil, fmt.Errorf("failed to create mean line: %v", err)
	}
	meanLine.Color = color.Gray{Y: 128}
	meanLine.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(meanLine)

	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-10)

	return writePNG(p, 800, 400)
}

// stabilityBins is the bin count of the stability histogram.
const stabilityBins = 20

// horizontalHist draws histogram bars growing to the right, with bin edges
// on the Y axis, so it reads alongside the stability trace.
type horizontalHist struct {
	*plotter.Histogram
}

func (h horizontalHist) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	for _, bin := range h.Bins {
		xmin, xmax := c.Min.X, c.Min.X
		if bin.Weight != 0 {
			xmax = trX(bin.Weight)
		}
		ymin, ymax := trY(bin.Min), trY(bin.Max)
		pts := []vg.Point{
			{X: xmin, Y: ymin},
			{X: xmax, Y: ymin},
			{X: xmax, Y: ymax},
			{X: xmin, Y: ymax},
		}
		if h.FillColor != nil {
			c.FillPolygon(h.FillColor, c.ClipPolygonXY(pts))
		}
		pts = append(pts, vg.Point{X: xmin, Y: ymin})
		c.StrokeLines(h.LineStyle, c.ClipLinesXY(pts)...)
	}
}

func (h horizontalHist) DataRange() (xmin, xmax, ymin, ymax float64) {
	ymin, ymax, xmin, xmax = h.Histogram.DataRange()
	return xmin, xmax, ymin, ymax
}

// CreateStabilityHistogram bins a point stream into a horizontal histogram
// of heights, marking the mean and the threshold band.
func CreateStabilityHistogram(points []float64, res *analysis.StabilityResult) ([]byte, error) {
	if len(points) == 0 || res == nil {
		return nil, fmt.Errorf("no point samples to plot")
	}
	values, err := plotter.CopyValues(plotter.Values(points))
	if err != nil {
		return nil, fmt.Errorf("invalid point samples: %v", err)
	}
	hist, err := plotter.NewHist(values, stabilityBins)
	if err != nil {
		return nil, fmt.Errorf("failed to create stability histogram: %v", err)
	}
	hist.FillColor = profileColor

	p := plot.New()
	p.Title.Text = "Z-Stability Histogram"
	p.X.Label.Text = "Count"
	p.Y.Label.Text = "Height"
	p.Add(plotter.NewGrid())
	p.Add(horizontalHist{hist})

	var peak float64
	for _, bin := range hist.Bins {
		peak = max(peak, bin.Weight)
	}
	for _, y := range []float64{res.Mean - res.Threshold, res.Mean, res.Mean + res.Threshold} {
		l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: y}, {X: peak, Y: y}})
		if err != nil {
			return nil, fmt.Errorf("failed to create threshold line: %v", err)
		}
		l.Color = thresholdColor
		if y == res.Mean {
			l.Color = color.Gray{Y: 128}
		}
		l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(l)
	}

	return writePNG(p, 400, 400)
}

func writePNG(p *plot.Plot, w, h float64) ([]byte, error) {
	writer, err := p.WriterTo(vg.Points(w), vg.Points(h), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create plot writer: %v", err)
	}
	buf := new(bytes.Buffer)
	if _, err := writer.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write plot to buffer: %v", err)
	}
	return buf.Bytes(), nil
}
