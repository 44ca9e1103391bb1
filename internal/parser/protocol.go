package parser

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/user/stm_scan_go/internal/scan"
)

// Device replies look like:
//
//	LINE OK N=256 IDX=0 DIR=+1
//	<csv of N floats, acquisition order>
//	POINT OK COUNT=200
//	<csv of COUNT floats>
//	OK MSG="ready"
//	ERR CODE=31 MSG="N out of range"
func isProtocolHeader(text string) bool {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.EqualFold(fields[1], "OK") {
		return false
	}
	head := strings.ToUpper(fields[0])
	return head == "LINE" || head == "POINT"
}

func parseKV(fields []string) map[string]string {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		if k, v, ok := strings.Cut(f, "="); ok {
			kv[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return kv
}

func kvInt(kv map[string]string, key string, l line) (int, error) {
	raw, ok := kv[key]
	if !ok {
		return 0, scan.Malformedf("line %d: header is missing %s=", l.no, key)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(raw, "+"))
	if err != nil {
		return 0, scan.Malformedf("line %d: %s=%q is not an integer", l.no, key, raw)
	}
	return n, nil
}

func parseProtocol(t *Transcript, lines []line, opts Options) error {
	var samples []scan.Sample
	width, maxIdx := 0, -1

	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if isComment(l) {
			continue
		}
		fields := strings.Fields(l.text)
		head := strings.ToUpper(fields[0])

		switch {
		case isProtocolHeader(l.text) && head == "LINE":
			kv := parseKV(fields[2:])
			n, err := kvInt(kv, "N", l)
			if err != nil {
				return err
			}
			idx, err := kvInt(kv, "IDX", l)
			if err != nil {
				return err
			}
			dir := 1
			if _, ok := kv["DIR"]; ok {
				if dir, err = kvInt(kv, "DIR", l); err != nil {
					return err
				}
			}
			if idx < 0 {
				return scan.Malformedf("line %d: negative line index %d", l.no, idx)
			}
			if i+1 >= len(lines) {
				return scan.Malformedf("line %d: LINE header has no payload", l.no)
			}
			i++
			values, err := parseValues(lines[i], opts)
			if err != nil {
				return err
			}
			if len(values) != n {
				return scan.Malformedf("line %d: LINE IDX=%d declares N=%d but carries %d values", lines[i].no, idx, n, len(values))
			}
			if width == 0 {
				width = n
			} else if n != width {
				return scan.Malformedf("line %d: LINE IDX=%d has N=%d, earlier lines have N=%d", l.no, idx, n, width)
			}
			if dir < 0 {
				slices.Reverse(values)
			}
			for c, v := range values {
				samples = append(samples, scan.Sample{Row: idx, Col: c, Value: v})
			}
			maxIdx = max(maxIdx, idx)

		case isProtocolHeader(l.text) && head == "POINT":
			kv := parseKV(fields[2:])
			if i+1 >= len(lines) {
				return scan.Malformedf("line %d: POINT header has no payload", l.no)
			}
			i++
			values, err := parseValues(lines[i], opts)
			if err != nil {
				return err
			}
			if count, err := kvInt(kv, "COUNT", l); err == nil && count != len(values) {
				t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: POINT declares COUNT=%d but carries %d values", l.no, count, len(values)))
			}
			finite := slices.DeleteFunc(values, func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) })
			if dropped := len(values) - len(finite); dropped > 0 {
				t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: dropped %d non-finite POINT values", lines[i].no, dropped))
			}
			if len(finite) > 0 {
				t.Points = append(t.Points, finite)
			}

		case head == "OK":
		case head == "ERR":
			t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: device error: %s", l.no, l.text))
		default:
			t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: ignored %q", l.no, truncate(l.text, 40)))
		}
	}

	rows, cols := maxIdx+1, width
	if opts.Rows > 0 {
		rows = opts.Rows
	}
	if opts.Cols > 0 {
		cols = opts.Cols
	}
	frame, err := scan.NewFrame(rows, cols, samples)
	if err != nil {
		return fmt.Errorf("protocol transcript: %w", err)
	}
	t.Frame = frame
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
