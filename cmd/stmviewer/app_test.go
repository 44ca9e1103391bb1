package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/stm_scan_go/internal/analysis"
	"github.com/user/stm_scan_go/internal/parser"
	"github.com/user/stm_scan_go/internal/pipeline"
	"github.com/user/stm_scan_go/internal/render"
)

type event struct {
	name string
	data []interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, data})
}

func (r *recorder) named(name string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func newTestApp() (*App, *recorder) {
	rec := &recorder{}
	app := NewApp(zerolog.Nop())
	app.ctx = context.Background()
	app.emit = rec.emit
	return app, rec
}

func request(input, output string) pipeline.Request {
	return pipeline.Request{
		Input:              input,
		Output:             output,
		Parse:              parser.Options{Format: parser.FormatAuto},
		Render:             render.DefaultConfig(),
		StabilityThreshold: analysis.DefaultStabilityThreshold,
	}
}

func TestRenderScanEmitsPreview(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.txt")
	require.NoError(t, os.WriteFile(input, []byte("[[0, 1], [2, 3]]\n"), 0o644))
	output := filepath.Join(dir, "scan.png")

	app, rec := newTestApp()
	app.renderScan(request(input, output))

	require.Len(t, rec.named(eventStart), 1)
	done := rec.named(eventComplete)
	require.Len(t, done, 1)
	require.Len(t, done[0].data, 3)
	assert.Equal(t, true, done[0].data[0])

	raw, err := base64.StdEncoding.DecodeString(done[0].data[2].(string))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 2*previewScale, img.Bounds().Dx())

	_, err = os.Stat(output)
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.named(eventStatus))
}

func TestRenderScanReportsFailure(t *testing.T) {
	app, rec := newTestApp()
	app.renderScan(request(filepath.Join(t.TempDir(), "missing.txt"), ""))

	done := rec.named(eventComplete)
	require.Len(t, done, 1)
	assert.Equal(t, false, done[0].data[0])
	assert.Contains(t, done[0].data[1], "Error rendering scan")
}

func TestRenderScanBeforeStartup(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.txt")
	require.NoError(t, os.WriteFile(input, []byte("[[0, 1], [2, 3]]\n"), 0o644))
	output := filepath.Join(dir, "scan.png")

	app, rec := newTestApp()
	app.ctx = nil
	require.NotPanics(t, func() { app.renderScan(request(input, output)) })
	require.NotPanics(t, func() { app.renderScan(request(filepath.Join(dir, "missing.txt"), "")) })

	assert.Empty(t, rec.events)
	_, err := os.Stat(output)
	assert.NoError(t, err)
}

func TestHandleRenderScanValidates(t *testing.T) {
	app, _ := newTestApp()

	_, err := app.HandleRenderScan("scan.txt", "", "rainbow", "linear")
	assert.Error(t, err)
	_, err = app.HandleRenderScan("scan.txt", "", "viridis", "log")
	assert.Error(t, err)
	_, err = app.HandleRenderScan("", "", "viridis", "linear")
	assert.Error(t, err)
}

func TestColormaps(t *testing.T) {
	app, _ := newTestApp()
	assert.Contains(t, app.Colormaps(), render.Viridis)
}
