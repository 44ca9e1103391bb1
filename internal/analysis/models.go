package analysis

// DefaultStabilityThreshold is the Z-stability limit: a point stream whose
// standard deviation stays below it is considered stable.
const DefaultStabilityThreshold = 0.5

// RowStat holds statistics for one scan line.
type RowStat struct {
	Row          int
	Mean         float64
	StdDev       float64
	Min          float64
	Max          float64
	PeakToValley float64
}

// RankedRow is used for ranking scan lines by different criteria.
type RankedRow struct {
	Row   int
	Value float64
}

// FrameStats summarises a frame.
type FrameStats struct {
	Rows         int
	Cols         int
	Min          float64
	Max          float64
	Mean         float64
	StdDev       float64 // population, i.e. RMS roughness about the mean
	PeakToValley float64
	RowStats     []RowStat
	RankedRough  []RankedRow // by row std dev, descending
	RankedByPV   []RankedRow // by row peak-to-valley, descending
}

// StabilityResult is the Z-stability verdict for a point stream.
type StabilityResult struct {
	Samples   int
	Mean      float64
	StdDev    float64
	Threshold float64
	Stable    bool
}
