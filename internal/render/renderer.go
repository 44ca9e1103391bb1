package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/user/stm_scan_go/internal/scan"
)

// Cell is one rendered grid position, traceable to its source sample.
type Cell struct {
	Row   int
	Col   int
	Value float64    // source value
	Level float64    // normalized, 0..1
	Color color.RGBA // colormap output
}

// Raster is a rendered frame: exactly Rows x Cols cells and an image with
// one pixel per cell.
type Raster struct {
	Rows   int
	Cols   int
	Min    float64 // value mapped to level 0
	Max    float64 // value mapped to level 1
	Origin Origin
	Image  *image.RGBA

	cells []Cell
}

// Render maps every cell of f through the configured normalization and
// colormap. It is pure and deterministic.
func Render(f *scan.Frame, cfg Config) (*Raster, error) {
	if f == nil {
		return nil, scan.Malformedf("no frame to render")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cm, err := LookupColormap(cfg.Colormap)
	if err != nil {
		return nil, err
	}

	rows, cols := f.Dims()
	lo, hi := cfg.Bounds(f)
	r := &Raster{
		Rows:   rows,
		Cols:   cols,
		Min:    lo,
		Max:    hi,
		Origin: cfg.Origin,
		Image:  image.NewRGBA(image.Rect(0, 0, cols, rows)),
		cells:  make([]Cell, 0, rows*cols),
	}
	if r.Origin == "" {
		r.Origin = OriginUpper
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := f.At(row, col)
			lvl := level(v, lo, hi)
			c := Cell{Row: row, Col: col, Value: v, Level: lvl, Color: cm.At(lvl)}
			r.cells = append(r.cells, c)
			p := r.PixelOf(row, col)
			r.Image.SetRGBA(p.X, p.Y, c.Color)
		}
	}
	return r, nil
}

// Cell returns the rendered cell at (row, col).
func (r *Raster) Cell(row, col int) Cell {
	if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
		panic(fmt.Sprintf("render: cell (%d,%d) outside %dx%d raster", row, col, r.Rows, r.Cols))
	}
	return r.cells[row*r.Cols+col]
}

// Cells returns every cell in row-major order.
func (r *Raster) Cells() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// PixelOf returns the image pixel that shows (row, col).
func (r *Raster) PixelOf(row, col int) image.Point {
	if r.Origin == OriginLower {
		return image.Pt(col, r.Rows-1-row)
	}
	return image.Pt(col, row)
}
