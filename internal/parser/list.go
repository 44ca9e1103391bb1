package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/user/stm_scan_go/internal/scan"
)

// parseList reads a bracketed list of rows as printed by the acquisition
// script, e.g. "[[512, 530], [498, 505]]". Progress output before the
// opening bracket is skipped with a warning.
func parseList(t *Transcript, lines []line, order scan.Order, opts Options) error {
	var sb strings.Builder
	startNo := 0
	for _, l := range lines {
		if isComment(l) {
			continue
		}
		if startNo == 0 {
			if !strings.Contains(l.text, "[") {
				t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: skipped %q before list", l.no, truncate(l.text, 40)))
				continue
			}
			startNo = l.no
		}
		sb.WriteString(l.text)
		sb.WriteByte('\n')
	}
	if startNo == 0 {
		return scan.Malformedf("list transcript has no opening bracket")
	}

	rows, rest, err := parseNestedList(sb.String())
	if err != nil {
		return fmt.Errorf("list transcript starting at line %d: %w", startNo, err)
	}
	if strings.TrimSpace(rest) != "" {
		t.Warnings = append(t.Warnings, fmt.Sprintf("ignored %q after list", truncate(strings.TrimSpace(rest), 40)))
	}
	if opts.ADCCodes {
		for _, row := range rows {
			for i, v := range row {
				row[i] = CodeToHeight(v)
			}
		}
	}

	frame, err := scan.FromRows(rows, order)
	if err != nil {
		return fmt.Errorf("list transcript: %w", err)
	}
	if opts.Rows > 0 || opts.Cols > 0 {
		r, c := frame.Dims()
		if (opts.Rows > 0 && opts.Rows != r) || (opts.Cols > 0 && opts.Cols != c) {
			return scan.Malformedf("list transcript is %dx%d, expected %dx%d", r, c, opts.Rows, opts.Cols)
		}
	}
	t.Frame = frame
	return nil
}

// parseNestedList parses exactly two levels of brackets starting at the
// first '['. It returns the rows and whatever text follows the closing bracket.
func parseNestedList(s string) ([][]float64, string, error) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil, s, scan.Malformedf("no opening bracket")
	}

	var (
		rows  [][]float64
		cur   []float64
		tok   strings.Builder
		depth int
	)
	flush := func() error {
		text := strings.TrimSpace(tok.String())
		tok.Reset()
		if text == "" {
			return nil
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return scan.Malformedf("row %d: value %q is not a number", len(rows), text)
		}
		cur = append(cur, v)
		return nil
	}

	for i := start; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '[':
			depth++
			if depth > 2 {
				return nil, "", scan.Malformedf("lists nested deeper than rows of values")
			}
			if depth == 2 {
				cur = []float64{}
			}
		case ']':
			if depth == 2 {
				if err := flush(); err != nil {
					return nil, "", err
				}
				rows = append(rows, cur)
				cur = nil
			}
			depth--
			if depth == 0 {
				return rows, s[i+1:], nil
			}
		case ',':
			if depth == 2 {
				if err := flush(); err != nil {
					return nil, "", err
				}
			}
		default:
			if depth == 2 {
				tok.WriteByte(ch)
			} else if !unicode.IsSpace(rune(ch)) {
				return nil, "", scan.Malformedf("unexpected %q outside a row; want a list of rows", ch)
			}
		}
	}
	return nil, "", scan.Malformedf("unterminated list")
}
