package render

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const upperHalf = "▀"

// Preview writes the raster to a terminal as half-block characters: each
// text cell shows two pixel rows, the upper one as foreground and the lower
// one as background. Rasters wider than maxWidth are subsampled with the
// same stride on both axes.
func Preview(w io.Writer, r *Raster, maxWidth int) error {
	if maxWidth < 1 {
		maxWidth = 80
	}
	step := (r.Cols + maxWidth - 1) / maxWidth
	if step < 1 {
		step = 1
	}

	re := lipgloss.NewRenderer(w)
	img := r.Image
	b := img.Bounds()

	var sb strings.Builder
	for y := 0; y < b.Dy(); y += 2 * step {
		for x := 0; x < b.Dx(); x += step {
			style := re.NewStyle().Foreground(hexColor(img.RGBAAt(x, y)))
			if y+step < b.Dy() {
				style = style.Background(hexColor(img.RGBAAt(x, y+step)))
			}
			sb.WriteString(style.Render(upperHalf))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
