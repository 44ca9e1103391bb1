package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/parser"
	"github.com/user/stm_scan_go/internal/pipeline"
	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/storage"
)

// Events sent to the front end.
const (
	eventStatus   = "statusUpdate"
	eventClearLog = "clearLog"
	eventStart    = "generationStart"
	eventComplete = "generationComplete"
)

// previewScale enlarges small scans for display in the window.
const previewScale = 4

// App struct
type App struct {
	ctx    context.Context
	log    zerolog.Logger
	runner *pipeline.Runner
	emit   func(ctx context.Context, event string, data ...interface{})
}

// NewApp creates a new App application struct
func NewApp(log zerolog.Logger) *App {
	return &App{
		log:    log,
		runner: &pipeline.Runner{Sink: storage.LocalSink{}, Log: log},
		emit:   runtime.EventsEmit,
	}
}

// Startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	runtime.WindowSetTitle(a.ctx, "STM Scan Viewer")
}

// emitEvent is a no-op until Startup has handed over the runtime context.
func (a *App) emitEvent(event string, data ...interface{}) {
	if a.ctx != nil {
		a.emit(a.ctx, event, data...)
	}
}

func (a *App) sendStatus(message string) {
	a.emitEvent(eventStatus, message)
	a.log.Info().Msg(message)
}

func (a *App) fail(message string) {
	a.sendStatus(message)
	a.emitEvent(eventComplete, false, message, "")
}

// Colormaps lists the colormap names for the front end's selector.
func (a *App) Colormaps() []string {
	return render.ColormapNames()
}

// HandleRenderScan is called from the frontend to render a transcript. The
// work runs in the background; the result arrives with the
// generationComplete event as (ok, message, base64 PNG preview).
func (a *App) HandleRenderScan(transcriptPath, outputPath, colormap, normalization string) (string, error) {
	cfg := render.DefaultConfig()
	cfg.Colormap = colormap
	norm, err := render.ParseNormalization(normalization)
	if err != nil {
		return "", err
	}
	cfg.Normalization = norm
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if transcriptPath == "" {
		return "", fmt.Errorf("no transcript selected")
	}

	a.emitEvent(eventClearLog)
	a.sendStatus(fmt.Sprintf("Request: transcript=[%s], output=[%s], colormap=%s, normalization=%s",
		transcriptPath, outputPath, cfg.Colormap, cfg.Normalization))

	req := pipeline.Request{
		Input:              transcriptPath,
		Output:             outputPath,
		Parse:              parser.Options{Format: parser.FormatAuto},
		Render:             cfg,
		Scale:              1,
		StabilityThreshold: analysis.DefaultStabilityThreshold,
	}
	go a.renderScan(req) // Run the main logic in a goroutine to avoid blocking the UI

	return "Rendering started in background.", nil
}

func (a *App) renderScan(req pipeline.Request) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(fmt.Sprintf("PANIC recovered: %v", r))
		}
	}()

	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a.emitEvent(eventStart) // Signal JS to update UI (e.g., disable button)

	a.sendStatus(fmt.Sprintf("Rendering: %s", req.Input))
	res, err := a.runner.Run(ctx, req)
	if err != nil {
		a.fail(fmt.Sprintf("Error rendering scan: %v", err))
		return
	}

	rows, cols := res.Transcript.Frame.Dims()
	a.sendStatus(fmt.Sprintf("Parsed %s transcript: %d x %d.", res.Transcript.Format, rows, cols))
	for _, w := range res.Transcript.Warnings {
		a.sendStatus(fmt.Sprintf("- %s", w))
	}
	a.sendStatus(fmt.Sprintf("Range %.4g .. %.4g, RMS roughness %.4g", res.Stats.Min, res.Stats.Max, res.Stats.StdDev))
	if res.Stability != nil {
		verdict := "stable"
		if !res.Stability.Stable {
			verdict = "UNSTABLE"
		}
		a.sendStatus(fmt.Sprintf("Z-stability: %s (std %.3f over %d samples)", verdict, res.Stability.StdDev, res.Stability.Samples))
	}

	var buf bytes.Buffer
	if err := render.Encode(&buf, res.Raster, render.PNG, previewScale); err != nil {
		a.fail(fmt.Sprintf("Error encoding preview: %v", err))
		return
	}
	successMsg := fmt.Sprintf("Image written: %s", res.Output)
	a.sendStatus(successMsg)
	a.emitEvent(eventComplete, true, successMsg, base64.StdEncoding.EncodeToString(buf.Bytes()))
}
