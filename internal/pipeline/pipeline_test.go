package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/stm_scan_go/internal/parser"
	"github.com/user/stm_scan_go/internal/render"
	"github.com/user/stm_scan_go/internal/scan"
	"github.com/user/stm_scan_go/internal/storage"
)

const protocolTranscript = `OK MSG="start-ready"
LINE OK N=3 IDX=0 DIR=+1
0,1,2
LINE OK N=3 IDX=1 DIR=-1
5,4,3
POINT OK COUNT=4
0.1,0.2,0.1,0.2
ERR CODE=32 MSG="IDX out of range"
LINE OK N=3 IDX=2 DIR=+1
6,7,8
`

type memSink struct {
	writes map[string][]byte
	types  map[string]string
}

func newMemSink() *memSink {
	return &memSink{writes: map[string][]byte{}, types: map[string]string{}}
}

func (m *memSink) Write(_ context.Context, dest string, data []byte, contentType string) error {
	m.writes[dest] = append([]byte(nil), data...)
	m.types[dest] = contentType
	return nil
}

func writeTranscript(t *testing.T, text string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scan.txt")
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func newRunner(sink storage.Sink, logBuf *bytes.Buffer) *Runner {
	return &Runner{
		Sink: sink,
		Log:  zerolog.New(logBuf),
		Now:  func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "runs/scan.png", DefaultOutput("runs/scan.txt"))
	assert.Equal(t, "scan.png", DefaultOutput("scan"))
}

func TestRunWritesRaster(t *testing.T) {
	input := writeTranscript(t, protocolTranscript)
	var logs bytes.Buffer
	r := newRunner(storage.LocalSink{}, &logs)

	res, err := r.Run(context.Background(), Request{Input: input, Render: render.DefaultConfig(), Scale: 2})
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput(input), res.Output)
	assert.Equal(t, "image/png", res.ContentType)
	f, err := os.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), img.Bounds())

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}, res.Transcript.Frame.Values())
	require.NotNil(t, res.Stats)
	assert.Equal(t, 8.0, res.Stats.PeakToValley)
	require.NotNil(t, res.Stability)
	assert.True(t, res.Stability.Stable)

	assert.Contains(t, logs.String(), "Transcript parsed")
	assert.Contains(t, logs.String(), "device error")
	assert.Contains(t, logs.String(), `"level":"warn"`)
}

func TestRunVectorAndAnnotated(t *testing.T) {
	input := writeTranscript(t, "# rows=2 cols=2\n1 2\n3 4\n")
	tests := []struct {
		output      string
		annotate    bool
		contentType string
		prefix      string
	}{
		{"s3://scans/a.svg", false, "image/svg+xml", ""},
		{"out/a.pdf", false, "application/pdf", "%PDF"},
		{"out/a.png", true, "image/png", "\x89PNG"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			sink := newMemSink()
			_, err := newRunner(sink, &bytes.Buffer{}).Run(context.Background(),
				Request{Input: input, Output: tt.output, Annotate: tt.annotate, Render: render.DefaultConfig()})
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, sink.types[tt.output])
			assert.True(t, strings.HasPrefix(string(sink.writes[tt.output]), tt.prefix))
		})
	}

	_, err := newRunner(newMemSink(), &bytes.Buffer{}).Run(context.Background(),
		Request{Input: input, Output: "a.bmp", Annotate: true, Render: render.DefaultConfig()})
	assert.ErrorIs(t, err, scan.ErrMalformedInput)
}

func TestRunReportAndPreview(t *testing.T) {
	input := writeTranscript(t, protocolTranscript)
	sink := newMemSink()
	var preview bytes.Buffer

	res, err := newRunner(sink, &bytes.Buffer{}).Run(context.Background(), Request{
		Input:        input,
		Output:       "scan.png",
		Report:       "reports/scan.pdf",
		Render:       render.DefaultConfig(),
		Preview:      &preview,
		PreviewWidth: 40,
	})
	require.NoError(t, err)

	assert.Equal(t, "reports/scan.pdf", res.Report)
	assert.True(t, bytes.HasPrefix(sink.writes["reports/scan.pdf"], []byte("%PDF")))
	assert.Equal(t, "application/pdf", sink.types["reports/scan.pdf"])
	assert.Contains(t, preview.String(), "▀")
}

func TestRunStdin(t *testing.T) {
	sink := newMemSink()
	r := newRunner(sink, &bytes.Buffer{})
	r.Stdin = strings.NewReader("[[1, 2], [3, 4]]\n")

	res, err := r.Run(context.Background(), Request{Input: StdinInput, Output: storage.Stdout, Render: render.DefaultConfig()})
	require.NoError(t, err)
	assert.Equal(t, parser.FormatList, res.Transcript.Format)
	assert.True(t, bytes.HasPrefix(sink.writes[storage.Stdout], []byte("\x89PNG")))

	_, err = r.Run(context.Background(), Request{Input: StdinInput, Render: render.DefaultConfig()})
	assert.ErrorIs(t, err, scan.ErrMalformedInput)
}

func TestRunErrors(t *testing.T) {
	good := writeTranscript(t, "# rows=2 cols=2\n1 2\n3 4\n")
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing input", Request{Input: filepath.Join(t.TempDir(), "nope.txt")}, scan.ErrIO},
		{"malformed", Request{Input: writeTranscript(t, "LINE OK N=3 IDX=0\n1,2\n")}, scan.ErrMalformedInput},
		{"geometry", Request{Input: good, Geometry: scan.Geometry{Zoom: 1, Downsample: 256}}, scan.ErrMalformedInput},
		{"bad config", Request{Input: good, Render: render.Config{Colormap: "plasma"}}, scan.ErrMalformedInput},
		{"unknown extension", Request{Input: good, Output: "a.webp"}, scan.ErrMalformedInput},
		{"unwritable", Request{Input: good, Output: filepath.Join(good, "a.png")}, scan.ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRunner(storage.LocalSink{}, &bytes.Buffer{}).Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
