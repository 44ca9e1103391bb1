package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/parser"
	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/report"
	"github.com/user/stm_scan_go/internal/scan"
	"github.com/user/stm_scan_go/internal/storage"
)

// StdinInput reads the transcript from Runner.Stdin.
const StdinInput = "-"

var plotContentTypes = map[string]string{
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
	"eps":  "application/postscript",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// Request describes one transcript-to-image run.
type Request struct {
	Input              string // transcript path or "-"
	Output             string // image destination; empty means <input>.png
	Parse              parser.Options
	Render             render.Config
	Scale              int
	Annotate           bool
	Report             string // PDF report destination, empty for none
	Geometry           scan.Geometry
	StabilityThreshold float64
	Preview            io.Writer // terminal preview target, nil for none
	PreviewWidth       int
}

// Result is what a run produced.
type Result struct {
	ID          uuid.UUID
	Transcript  *parser.Transcript
	Raster      *render.Raster
	Stats       *analysis.FrameStats
	Stability   *analysis.StabilityResult
	Output      string
	ContentType string
	Bytes       int
	Report      string
}

// Runner executes requests. Library packages stay silent; the runner is
// where their warnings and progress get logged.
type Runner struct {
	Sink  storage.Sink
	Stdin io.Reader
	Log   zerolog.Logger
	Now   func() time.Time
}

// DefaultOutput returns the image path used when none is given: the
// transcript path with its extension replaced by .png.
func DefaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
}

// Run parses, renders and writes one transcript.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{ID: uuid.New(), Output: req.Output}
	if res.Output == "" {
		if req.Input == StdinInput {
			return nil, scan.Malformedf("an output destination is required when reading stdin")
		}
		res.Output = DefaultOutput(req.Input)
	}
	log := r.Log.With().Str("run", res.ID.String()).Logger()

	tr, err := r.parse(req)
	if err != nil {
		return nil, err
	}
	res.Transcript = tr
	rows, cols := tr.Frame.Dims()
	log.Info().Str("path", req.Input).Str("format", string(tr.Format)).Str("order", tr.Order.String()).
		Int("rows", rows).Int("cols", cols).Msg("Transcript parsed")
	for _, w := range tr.Warnings {
		log.Warn().Str("path", req.Input).Msg(w)
	}

	if err := req.Geometry.Validate(rows, cols); err != nil {
		return nil, err
	}

	raster, err := render.Render(tr.Frame, req.Render)
	if err != nil {
		return nil, err
	}
	res.Raster = raster
	log.Debug().Float64("min", raster.Min).Float64("max", raster.Max).Str("colormap", req.Render.Colormap).Msg("Frame rendered")

	data, contentType, err := encodeOutput(tr.Frame, raster, req, res.Output)
	if err != nil {
		return nil, err
	}
	if err := r.Sink.Write(ctx, res.Output, data, contentType); err != nil {
		return nil, err
	}
	res.ContentType, res.Bytes = contentType, len(data)
	log.Info().Str("output", res.Output).Str("contentType", contentType).Int("bytes", len(data)).Msg("Image written")

	if res.Stats, err = analysis.AnalyzeFrame(tr.Frame); err != nil {
		return nil, err
	}

	if points := tr.PointSamples(); len(points) > 0 {
		if res.Stability, err = analysis.AnalyzeStability(points, req.StabilityThreshold); err != nil {
			return nil, err
		}
		level := zerolog.InfoLevel
		if !res.Stability.Stable {
			level = zerolog.WarnLevel
		}
		log.WithLevel(level).Int("samples", res.Stability.Samples).Float64("std", res.Stability.StdDev).
			Float64("threshold", res.Stability.Threshold).Bool("stable", res.Stability.Stable).Msg("Z-stability checked")
	}

	if req.Report != "" {
		if err := r.writeReport(ctx, req, res); err != nil {
			return nil, err
		}
		res.Report = req.Report
		log.Info().Str("report", req.Report).Msg("Report written")
	}

	if req.Preview != nil {
		if err := render.Preview(req.Preview, raster, req.PreviewWidth); err != nil {
			return nil, scan.IOErrorf("failed to write preview: %v", err)
		}
	}
	return res, nil
}

func (r *Runner) parse(req Request) (*parser.Transcript, error) {
	if req.Input != StdinInput {
		return parser.ParseFile(req.Input, req.Parse)
	}
	if r.Stdin == nil {
		return nil, scan.IOErrorf("no stdin to read the transcript from")
	}
	return parser.ParseTranscript(r.Stdin, req.Parse)
}

// outputExt is the lower-case extension of a destination; stdout has none.
func outputExt(dest string) string {
	if dest == storage.Stdout {
		return ""
	}
	if storage.IsS3URI(dest) {
		return strings.ToLower(strings.TrimPrefix(path.Ext(dest), "."))
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(dest), "."))
}

// encodeOutput produces the bytes for dest. Vector extensions and
// --annotate go through the plot renderer; everything else is the bare
// raster. Stdout gets PNG.
func encodeOutput(f *scan.Frame, raster *render.Raster, req Request, dest string) ([]byte, string, error) {
	ext := outputExt(dest)
	if ext == "" {
		ext = "png"
	}

	vector := ext == "svg" || ext == "pdf" || ext == "eps"
	if req.Annotate || vector {
		format := report.PlotFormat(ext)
		if format == "" {
			return nil, "", scan.Malformedf("annotated output cannot be written as .%s", ext)
		}
		rows, cols := f.Dims()
		data, err := report.CreateHeatmapPlot(f, req.Render, fmt.Sprintf("STM scan %dx%d", rows, cols), format)
		if err != nil {
			return nil, "", err
		}
		return data, plotContentTypes[format], nil
	}

	format, err := render.FormatFromPath("." + ext)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := render.Encode(&buf, raster, format, req.Scale); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), format.ContentType(), nil
}

func (r *Runner) writeReport(ctx context.Context, req Request, res *Result) error {
	tr := res.Transcript
	rows, cols := tr.Frame.Dims()

	heat, err := report.CreateHeatmapPlot(tr.Frame, req.Render, fmt.Sprintf("STM scan %dx%d", rows, cols), "png")
	if err != nil {
		return err
	}
	plots := map[string][]byte{report.PlotHeatmap: heat}

	profileRow := 0
	if len(res.Stats.RankedRough) > 0 {
		profileRow = res.Stats.RankedRough[0].Row
	}
	if plots[report.PlotProfile], err = report.CreateProfilePlot(tr.Frame, profileRow); err != nil {
		return err
	}
	if res.Stability != nil {
		if plots[report.PlotStability], err = report.CreateStabilityPlot(tr.PointSamples(), res.Stability); err != nil {
			return err
		}
		if plots[report.PlotStabilityHistogram], err = report.CreateStabilityHistogram(tr.PointSamples(), res.Stability); err != nil {
			return err
		}
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	var buf bytes.Buffer
	err = report.BuildPDFReport(&buf, report.Input{
		ID:          res.ID,
		Source:      req.Input,
		Format:      string(tr.Format),
		Order:       tr.Order,
		Geometry:    req.Geometry,
		Render:      req.Render,
		Stats:       res.Stats,
		Stability:   res.Stability,
		ProfileRow:  profileRow,
		Plots:       plots,
		Warnings:    tr.Warnings,
		GeneratedAt: now(),
	})
	if err != nil {
		return err
	}
	return r.Sink.Write(ctx, req.Report, buf.Bytes(), "application/pdf")
}
