package scan

import (
	"fmt"
	"strings"
)

// Sample is one reading taken at a raster position.
type Sample struct {
	Row   int
	Col   int
	Value float64 // tunneling current or Z height, calibration dependent
}

// Order describes how a flat run of values was laid down on the grid.
type Order int

const (
	// RowMajor: every row is recorded left to right.
	RowMajor Order = iota
	// Boustrophedon: even rows left to right, odd rows right to left.
	Boustrophedon
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case Boustrophedon:
		return "boustrophedon"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder accepts "row-major" and "boustrophedon" plus a few common
// spellings ("raster", "serpentine", "zigzag").
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "row-major", "rowmajor", "raster":
		return RowMajor, nil
	case "boustrophedon", "serpentine", "zigzag", "zig-zag":
		return Boustrophedon, nil
	}
	return RowMajor, Malformedf("unknown scan order %q", s)
}

// column maps the i-th value recorded on a row to its grid column.
func (o Order) column(row, i, cols int) int {
	if o == Boustrophedon && row%2 == 1 {
		return cols - 1 - i
	}
	return i
}
