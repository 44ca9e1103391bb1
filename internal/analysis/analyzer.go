package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/user/stm_scan_go/internal/scan"
)

// AnalyzeFrame computes whole-frame and per-line statistics.
func AnalyzeFrame(f *scan.Frame) (*FrameStats, error) {
	if f == nil {
		return nil, fmt.Errorf("frame is nil, cannot analyze")
	}
	rows, cols := f.Dims()
	values := f.Values()

	mean, std := stat.PopMeanStdDev(values, nil)
	lo, hi := floats.Min(values), floats.Max(values)
	res := &FrameStats{
		Rows:         rows,
		Cols:         cols,
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		StdDev:       std,
		PeakToValley: hi - lo,
		RowStats:     make([]RowStat, 0, rows),
	}

	for r := 0; r < rows; r++ {
		line := f.Row(r)
		m, s := stat.PopMeanStdDev(line, nil)
		rs := RowStat{
			Row:    r,
			Mean:   m,
			StdDev: s,
			Min:    floats.Min(line),
			Max:    floats.Max(line),
		}
		rs.PeakToValley = rs.Max - rs.Min
		res.RowStats = append(res.RowStats, rs)
		res.RankedRough = append(res.RankedRough, RankedRow{Row: r, Value: rs.StdDev})
		res.RankedByPV = append(res.RankedByPV, RankedRow{Row: r, Value: rs.PeakToValley})
	}

	// Stable sort keeps ties in row order.
	sort.SliceStable(res.RankedRough, func(i, j int) bool {
		return res.RankedRough[i].Value > res.RankedRough[j].Value
	})
	sort.SliceStable(res.RankedByPV, func(i, j int) bool {
		return res.RankedByPV[i].Value > res.RankedByPV[j].Value
	})
	return res, nil
}

// RowProfile returns the height profile along one scan line.
func RowProfile(f *scan.Frame, row int) ([]float64, error) {
	rows, _ := f.Dims()
	if row < 0 || row >= rows {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, rows)
	}
	return f.Row(row), nil
}

// AnalyzeStability reports whether a single-point height stream is steady
// enough to scan. A non-positive threshold selects the default.
func AnalyzeStability(points []float64, threshold float64) (*StabilityResult, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no point samples to analyze")
	}
	if threshold <= 0 {
		threshold = DefaultStabilityThreshold
	}
	mean, std := stat.PopMeanStdDev(points, nil)
	return &StabilityResult{
		Samples:   len(points),
		Mean:      mean,
		StdDev:    std,
		Threshold: threshold,
		Stable:    std < threshold,
	}, nil
}
