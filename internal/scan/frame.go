package scan

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Frame is a complete rectangular scan: every (row, col) of the declared
// extent holds exactly one finite value. Frames are read-only.
type Frame struct {
	rows, cols int
	data       *mat.Dense
}

// NewFrame validates samples against a rows x cols extent and builds a frame.
func NewFrame(rows, cols int, samples []Sample) (*Frame, error) {
	if rows <= 0 || cols <= 0 {
		return nil, Malformedf("empty grid %dx%d", rows, cols)
	}
	if rows > math.MaxInt/cols {
		return nil, Malformedf("grid %dx%d is too large", rows, cols)
	}
	n := rows * cols
	if len(samples) != n {
		return nil, countError(rows, cols, samples)
	}

	data := make([]float64, n)
	seen := make([]bool, n)
	for i, s := range samples {
		if err := checkSample(i, s, rows, cols); err != nil {
			return nil, err
		}
		idx := s.Row*cols + s.Col
		if seen[idx] {
			return nil, Malformedf("duplicate sample at (%d,%d)", s.Row, s.Col)
		}
		seen[idx] = true
		data[idx] = s.Value
	}

	return &Frame{rows: rows, cols: cols, data: mat.NewDense(rows, cols, data)}, nil
}

func checkSample(i int, s Sample, rows, cols int) error {
	if s.Row < 0 || s.Row >= rows || s.Col < 0 || s.Col >= cols {
		return Malformedf("sample %d at (%d,%d) lies outside the %dx%d grid", i, s.Row, s.Col, rows, cols)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return Malformedf("sample %d at (%d,%d) is not a finite value", i, s.Row, s.Col)
	}
	return nil
}

// countError explains a sample count that does not fill the grid. Memory
// stays proportional to the samples, not to the declared extent.
func countError(rows, cols int, samples []Sample) error {
	seen := make(map[int]struct{}, len(samples))
	for i, s := range samples {
		if err := checkSample(i, s, rows, cols); err != nil {
			return err
		}
		idx := s.Row*cols + s.Col
		if _, dup := seen[idx]; dup {
			return Malformedf("duplicate sample at (%d,%d)", s.Row, s.Col)
		}
		seen[idx] = struct{}{}
	}
	// Fewer unique in-range samples than cells: one of the first
	// len(samples)+1 cells is empty.
	for idx := 0; idx <= len(samples); idx++ {
		if _, ok := seen[idx]; !ok {
			return Malformedf("got %d samples for a %dx%d grid, first missing position is (%d,%d)",
				len(samples), rows, cols, idx/cols, idx%cols)
		}
	}
	return Malformedf("got %d samples for a %dx%d grid", len(samples), rows, cols)
}

// FromRows builds a frame from rows in acquisition order. With Boustrophedon
// the odd rows are taken to be recorded right to left.
func FromRows(rows [][]float64, order Order) (*Frame, error) {
	if len(rows) == 0 {
		return nil, Malformedf("empty grid: no rows")
	}
	cols := len(rows[0])
	samples := make([]Sample, 0, len(rows)*cols)
	for r, row := range rows {
		if len(row) != cols {
			return nil, Malformedf("row %d has %d values, want %d", r, len(row), cols)
		}
		for i, v := range row {
			samples = append(samples, Sample{Row: r, Col: order.column(r, i, cols), Value: v})
		}
	}
	return NewFrame(len(rows), cols, samples)
}

// FromSequence lays a flat run of values onto a rows x cols grid.
func FromSequence(rows, cols int, values []float64, order Order) (*Frame, error) {
	if rows <= 0 || cols <= 0 {
		return nil, Malformedf("empty grid %dx%d", rows, cols)
	}
	if rows > math.MaxInt/cols {
		return nil, Malformedf("grid %dx%d is too large", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, Malformedf("got %d values for a %dx%d grid (want %d)", len(values), rows, cols, rows*cols)
	}
	samples := make([]Sample, len(values))
	for i, v := range values {
		r := i / cols
		samples[i] = Sample{Row: r, Col: order.column(r, i%cols, cols), Value: v}
	}
	return NewFrame(rows, cols, samples)
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (rows, cols int) { return f.rows, f.cols }

// At returns the value at (row, col).
func (f *Frame) At(row, col int) float64 { return f.data.At(row, col) }

// Row returns a copy of one row, left to right.
func (f *Frame) Row(row int) []float64 { return mat.Row(nil, row, f.data) }

// Values returns a row-major copy of all values.
func (f *Frame) Values() []float64 {
	out := make([]float64, f.rows*f.cols)
	copy(out, f.data.RawMatrix().Data)
	return out
}

// Samples returns the frame as samples in row-major order.
func (f *Frame) Samples() []Sample {
	out := make([]Sample, 0, f.rows*f.cols)
	for r := 0; r < f.rows; r++ {
		for c := 0; c < f.cols; c++ {
			out = append(out, Sample{Row: r, Col: c, Value: f.data.At(r, c)})
		}
	}
	return out
}

// Bounds returns the observed minimum and maximum.
func (f *Frame) Bounds() (lo, hi float64) {
	raw := f.data.RawMatrix().Data
	return floats.Min(raw), floats.Max(raw)
}
