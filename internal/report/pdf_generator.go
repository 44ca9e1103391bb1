package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/scan"
)

const (
	inchToMm              = 25.4
	pdfPageWidthPortrait  = 8.5 * inchToMm // Letter portrait
	pdfPageHeightPortrait = 11 * inchToMm
	pdfMargin             = 0.5 * inchToMm
	pdfContentWidth       = pdfPageWidthPortrait - (2 * pdfMargin)
	rankedRowsShown       = 10
)

// Plot keys understood by BuildPDFReport.
const (
	PlotHeatmap            = "heatmap"
	PlotProfile            = "profile"
	PlotStability          = "stability"
	PlotStabilityHistogram = "stabilityHistogram"
)

// Input is everything a scan report shows.
type Input struct {
	ID          uuid.UUID
	Source      string
	Format      string
	Order       scan.Order
	Geometry    scan.Geometry
	Render      render.Config
	Stats       *analysis.FrameStats
	Stability   *analysis.StabilityResult
	ProfileRow  int
	Plots       map[string][]byte // PNG images keyed by Plot* names
	Warnings    []string
	GeneratedAt time.Time
}

// pdfStyler holds reusable styling and state for PDF generation
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64 // manually tracked Y for flowing content
	pageHeight  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6,
		pageHeight:  pdfPageHeightPortrait - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 13)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["small"] = func() {
		s.pdf.SetFont("Arial", "I", 8)
		s.pdf.SetTextColor(90, 90, 90)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["good"] = func() {
		s.pdf.SetFont("Arial", "B", 10)
		s.pdf.SetTextColor(0, 140, 0)
	}
	s.styles["bad"] = func() {
		s.pdf.SetFont("Arial", "B", 10)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageHeight {
		s.newPage()
	}
}

func (s *pdfStyler) newPage() {
	s.pdf.AddPage()
	s.currentY = s.contentTopY
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWidth)
	s.checkAddPage(float64(max(1, len(lines))) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWidth, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

// addImage places a registered PNG at full width, keeping its aspect ratio.
func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, caption string) {
	info := s.pdf.RegisterImageOptionsReader(imageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))
	if info == nil || s.pdf.Err() {
		return
	}
	if width > pdfContentWidth {
		width = pdfContentWidth
	}
	height := width * info.Height() / info.Width()

	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWidth-width)/2
	s.pdf.ImageOptions(imageName, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "small", "C")
	}
	s.addSpacer(2)
}

// table draws headers and rows with relative column widths.
func (s *pdfStyler) table(headers []string, widthsRel []float64, rows [][]string) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWidth
	}
	s.checkAddPage(s.lineHeight * 2)

	header := func() {
		x := pdfMargin
		s.applyStyle("tableHeader")
		for i, h := range headers {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}
	header()

	for _, row := range rows {
		if s.currentY+s.lineHeight > s.pageHeight {
			s.newPage()
			header()
		}
		x := pdfMargin
		s.applyStyle("tableCell")
		for i, cell := range row {
			s.pdf.SetXY(x, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			x += widths[i]
		}
		s.currentY += s.lineHeight
	}
	s.addSpacer(4)
}

func fmtValue(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

// BuildPDFReport writes a scan report to w.
func BuildPDFReport(w io.Writer, in Input) error {
	if in.Stats == nil {
		return fmt.Errorf("report needs frame statistics")
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("STM Scan Report", true)
	pdf.AddPage()

	styler := newPDFStyler(pdf)
	st := in.Stats

	styler.writeParagraph(fmt.Sprintf("STM Scan Report (%d x %d)", st.Rows, st.Cols), "h1", "C")
	styler.writeParagraph(fmt.Sprintf("Report %s, generated %s", in.ID, in.GeneratedAt.Format(time.RFC3339)), "small", "C")
	styler.addSpacer(4)

	styler.writeParagraph("Acquisition", "h2", "L")
	meta := [][]string{
		{"Transcript", in.Source},
		{"Transcript format", in.Format},
		{"Scan order", in.Order.String()},
		{"Grid", fmt.Sprintf("%d rows x %d columns", st.Rows, st.Cols)},
		{"Colormap", in.Render.Colormap},
		{"Normalization", normalizationLabel(in.Render)},
	}
	if !in.Geometry.IsZero() {
		first, last, stride := in.Geometry.CodeWindow()
		meta = append(meta,
			[]string{"Zoom / downsampling", fmt.Sprintf("%dx / %dx", in.Geometry.Zoom, in.Geometry.Downsample)},
			[]string{"DAC window", fmt.Sprintf("%d..%d step %d", first, last, stride)},
			[]string{"Nominal scan time", in.Geometry.EstimatedDuration().Round(time.Second).String()},
		)
	}
	styler.table([]string{"Property", "Value"}, []float64{0.35, 0.65}, meta)

	styler.writeParagraph("Frame Statistics", "h2", "L")
	styler.table([]string{"Min", "Max", "Mean", "RMS Roughness", "Peak-to-Valley"},
		[]float64{0.2, 0.2, 0.2, 0.2, 0.2},
		[][]string{{fmtValue(st.Min), fmtValue(st.Max), fmtValue(st.Mean), fmtValue(st.StdDev), fmtValue(st.PeakToValley)}})

	if in.Stability != nil {
		styler.writeParagraph("Z-Stability", "h2", "L")
		verdict, style := "STABLE", "good"
		if !in.Stability.Stable {
			verdict, style = "UNSTABLE", "bad"
		}
		styler.writeParagraph(fmt.Sprintf("%s: std %.3f over %d samples (threshold %.2f)",
			verdict, in.Stability.StdDev, in.Stability.Samples, in.Stability.Threshold), style, "L")
		styler.addSpacer(2)
	}

	rankings := []struct {
		Title      string
		Data       []analysis.RankedRow
		ValueLabel string
	}{
		{"Roughest Scan Lines", st.RankedRough, "Std Dev"},
		{"Scan Lines by Peak-to-Valley", st.RankedByPV, "Peak-to-Valley"},
	}
	for _, rankSet := range rankings {
		styler.writeParagraph(fmt.Sprintf("Top %d %s", rankedRowsShown, rankSet.Title), "h2", "L")
		var rows [][]string
		for i, item := range rankSet.Data {
			if i >= rankedRowsShown {
				break
			}
			rs := st.RowStats[item.Row]
			rows = append(rows, []string{strconv.Itoa(i + 1), strconv.Itoa(item.Row), fmtValue(rs.Mean), fmtValue(item.Value)})
		}
		styler.table([]string{"Rank", "Row", "Row Mean", rankSet.ValueLabel}, []float64{0.15, 0.15, 0.35, 0.35}, rows)
	}

	if len(in.Warnings) > 0 {
		styler.writeParagraph("Transcript Warnings", "h2", "L")
		for _, warn := range in.Warnings {
			styler.writeParagraph("- "+warn, "small", "L")
		}
	}

	plotDefs := []struct {
		Key     string
		Title   string
		Caption string
		Width   float64
	}{
		{PlotHeatmap, "Topography", "Rendered scan with colour scale", pdfContentWidth * 0.9},
		{PlotProfile, "Line Profile", fmt.Sprintf("Height along row %d", in.ProfileRow), pdfContentWidth},
		{PlotStability, "Z-Stability Trace", "Single-point height stream with threshold band", pdfContentWidth},
		{PlotStabilityHistogram, "Z-Stability Histogram", fmt.Sprintf("Height distribution in %d bins", stabilityBins), pdfContentWidth * 0.5},
	}
	first := true
	for _, pDef := range plotDefs {
		imgBytes, ok := in.Plots[pDef.Key]
		if !ok || len(imgBytes) == 0 {
			continue
		}
		if first {
			styler.newPage()
			styler.writeParagraph("Graphical Analysis", "h1", "C")
			styler.addSpacer(3)
			first = false
		}
		styler.writeParagraph(pDef.Title, "h2", "L")
		styler.addImage(imgBytes, pDef.Key, pDef.Width, pDef.Caption)
	}

	if pdf.Err() {
		return fmt.Errorf("failed to build PDF: %w", pdf.Error())
	}
	if err := pdf.Output(w); err != nil {
		return scan.IOErrorf("failed to write PDF: %v", err)
	}
	return nil
}

func normalizationLabel(cfg render.Config) string {
	if cfg.Normalization == render.NormFixed {
		return fmt.Sprintf("fixed [%g, %g]", cfg.FixedMin, cfg.FixedMax)
	}
	return "linear (observed min/max)"
}
