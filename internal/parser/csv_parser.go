package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/user/stm_scan_go/internal/scan"
)

// maxLineBytes bounds one transcript line; a 4096-pixel LINE payload printed
// with %.6f fits comfortably.
const maxLineBytes = 16 << 20

// ParseFile opens a transcript and parses it.
func ParseFile(path string, opts Options) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, scan.IOErrorf("failed to open transcript: %v", err)
	}
	defer file.Close()

	return ParseTranscript(file, opts)
}

// ParseTranscript reads a scan transcript and builds a validated frame.
// With Format auto the shape is detected from the content.
func ParseTranscript(r io.Reader, opts Options) (*Transcript, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	dir, err := collectDirective(lines)
	if err != nil {
		return nil, err
	}
	order := opts.Order
	if dir.order != "" && opts.Order == scan.RowMajor {
		if order, err = scan.ParseOrder(dir.order); err != nil {
			return nil, err
		}
	}
	rows, cols := dir.rows, dir.cols
	if opts.Rows > 0 {
		rows = opts.Rows
	}
	if opts.Cols > 0 {
		cols = opts.Cols
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(lines, rows, cols)
	}

	t := &Transcript{Format: format, Order: order}
	switch format {
	case FormatProtocol:
		err = parseProtocol(t, lines, opts)
	case FormatTriples:
		err = parseTriples(t, lines, rows, cols, opts)
	case FormatList:
		err = parseList(t, lines, order, opts)
	case FormatFlat:
		err = parseFlat(t, lines, rows, cols, order, opts)
	default:
		err = scan.Malformedf("unknown transcript format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func readLines(r io.Reader) ([]line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var lines []line
	no := 0
	for sc.Scan() {
		no++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		lines = append(lines, line{no: no, text: text})
	}
	if err := sc.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, scan.Malformedf("line %d exceeds %d bytes", no+1, maxLineBytes)
		}
		return nil, scan.IOErrorf("failed to read transcript: %v", err)
	}
	return lines, nil
}

func isComment(l line) bool { return strings.HasPrefix(l.text, "#") }

// dataLines drops comments.
func dataLines(lines []line) []line {
	out := make([]line, 0, len(lines))
	for _, l := range lines {
		if !isComment(l) {
			out = append(out, l)
		}
	}
	return out
}

// collectDirective merges every "# key=value ..." comment. Unknown keys are
// ordinary comment text and ignored.
func collectDirective(lines []line) (directive, error) {
	var d directive
	for _, l := range lines {
		if !isComment(l) {
			continue
		}
		for _, field := range strings.Fields(strings.TrimLeft(l.text, "# ")) {
			key, val, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			switch strings.ToLower(key) {
			case "rows":
				n, err := strconv.Atoi(val)
				if err != nil {
					return d, scan.Malformedf("line %d: rows directive %q: %v", l.no, val, err)
				}
				d.rows = n
			case "cols", "columns":
				n, err := strconv.Atoi(val)
				if err != nil {
					return d, scan.Malformedf("line %d: cols directive %q: %v", l.no, val, err)
				}
				d.cols = n
			case "order":
				d.order = val
			}
		}
	}
	return d, nil
}

func detectFormat(lines []line, rows, cols int) Format {
	data := dataLines(lines)
	if len(data) == 0 {
		return FormatFlat
	}
	for _, l := range data {
		if isProtocolHeader(l.text) {
			return FormatProtocol
		}
	}
	// The acquisition script prints progress before the list itself.
	for _, l := range data {
		if strings.HasPrefix(l.text, "[") {
			return FormatList
		}
	}
	if looksLikeTriples(data, rows, cols) {
		return FormatTriples
	}
	return FormatFlat
}

// looksLikeTriples requires three fields per line with integer coordinates,
// and a line count that fills the declared or inferred extent. Otherwise a
// three-column grid would be mistaken for coordinates.
func looksLikeTriples(data []line, rows, cols int) bool {
	maxRow, maxCol := -1, -1
	for _, l := range data {
		fields := splitFields(l.text)
		if len(fields) != 3 {
			return false
		}
		r, err1 := strconv.Atoi(fields[0])
		c, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || r < 0 || c < 0 {
			return false
		}
		maxRow, maxCol = max(maxRow, r), max(maxCol, c)
	}
	if rows <= 0 {
		rows = maxRow + 1
	}
	if cols <= 0 {
		cols = maxCol + 1
	}
	n := len(data)
	return rows <= n && cols <= n && rows*cols == n
}

// splitFields splits on commas, semicolons and whitespace.
func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

func parseValues(l line, opts Options) ([]float64, error) {
	fields := splitFields(l.text)
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, scan.Malformedf("line %d: value %d %q is not a number", l.no, i+1, field)
		}
		if opts.ADCCodes {
			v = CodeToHeight(v)
		}
		values[i] = v
	}
	return values, nil
}

func parseTriples(t *Transcript, lines []line, rows, cols int, opts Options) error {
	data := dataLines(lines)
	samples := make([]scan.Sample, 0, len(data))
	maxRow, maxCol := -1, -1
	for _, l := range data {
		fields := splitFields(l.text)
		if len(fields) != 3 {
			return scan.Malformedf("line %d: want row,col,value, got %d fields", l.no, len(fields))
		}
		r, err := strconv.Atoi(fields[0])
		if err != nil {
			return scan.Malformedf("line %d: row %q is not an integer", l.no, fields[0])
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil {
			return scan.Malformedf("line %d: column %q is not an integer", l.no, fields[1])
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return scan.Malformedf("line %d: value %q is not a number", l.no, fields[2])
		}
		if opts.ADCCodes {
			v = CodeToHeight(v)
		}
		maxRow, maxCol = max(maxRow, r), max(maxCol, c)
		samples = append(samples, scan.Sample{Row: r, Col: c, Value: v})
	}
	if rows <= 0 {
		rows = maxRow + 1
	}
	if cols <= 0 {
		cols = maxCol + 1
	}

	frame, err := scan.NewFrame(rows, cols, samples)
	if err != nil {
		return fmt.Errorf("triples transcript: %w", err)
	}
	t.Frame = frame
	return nil
}

// parseFlat reads delimited values. Without a declared extent, a transcript
// whose lines all carry the same number of values is read one row per line.
func parseFlat(t *Transcript, lines []line, rows, cols int, order scan.Order, opts Options) error {
	data := dataLines(lines)
	var values []float64
	width := -1
	for _, l := range data {
		vals, err := parseValues(l, opts)
		if err != nil {
			return err
		}
		switch {
		case width == -1:
			width = len(vals)
		case width != len(vals):
			width = 0
		}
		values = append(values, vals...)
	}

	switch {
	case rows > 0 && cols > 0:
	case rows > 0 && len(values)%rows == 0:
		cols = len(values) / rows
	case cols > 0 && len(values)%cols == 0:
		rows = len(values) / cols
	case rows <= 0 && cols <= 0 && width > 0 && len(data) > 1:
		rows, cols = len(data), width
	case len(values) == 0:
		return scan.Malformedf("flat transcript holds no values")
	default:
		return scan.Malformedf("flat transcript of %d values needs a grid extent (rows and cols)", len(values))
	}

	frame, err := scan.FromSequence(rows, cols, values, order)
	if err != nil {
		return fmt.Errorf("flat transcript: %w", err)
	}
	t.Frame = frame
	return nil
}
