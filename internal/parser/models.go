package parser

import (
	"strings"

	"github.com/user/stm_scan_go/internal/scan"
)

// Format identifies the shape of a scan transcript.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatProtocol Format = "protocol" // LINE OK / POINT OK serial replies
	FormatTriples  Format = "triples"  // row,col,value per line
	FormatList     Format = "list"     // [[...], [...]] dump
	FormatFlat     Format = "flat"     // delimited values + extent
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatProtocol, FormatTriples, FormatList, FormatFlat:
		return f, nil
	}
	return FormatAuto, scan.Malformedf("unknown transcript format %q", s)
}

// Raw 16-bit ADC codes are centred on mid-scale, 4096 codes per height unit.
const (
	ADCMidscale     = 32768.0
	ADCCodesPerUnit = 4096.0
)

// CodeToHeight converts a raw ADC code into height units.
func CodeToHeight(code float64) float64 {
	return (code - ADCMidscale) / ADCCodesPerUnit
}

// Options steer transcript parsing. Rows and Cols, when set, override any
// extent declared or inferred from the transcript itself.
type Options struct {
	Format   Format
	Rows     int
	Cols     int
	Order    scan.Order
	ADCCodes bool
}

// Transcript is the result of parsing: the validated frame plus anything
// else the transcript carried.
type Transcript struct {
	Format   Format
	Frame    *scan.Frame
	Order    scan.Order
	Points   [][]float64 // POINT blocks, in arrival order
	Warnings []string    // non-fatal findings
}

// PointSamples flattens every POINT block into one series.
func (t *Transcript) PointSamples() []float64 {
	var out []float64
	for _, p := range t.Points {
		out = append(out, p...)
	}
	return out
}

// line is one transcript line with its 1-based number.
type line struct {
	no   int
	text string
}

// directive holds "# rows=R cols=C order=..." settings.
type directive struct {
	rows, cols int
	order      string
}
