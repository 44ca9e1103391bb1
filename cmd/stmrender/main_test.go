package main

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/stm_scan_go/internal/scan"
)

func writeFile(t *testing.T, name, text string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
	return p
}

func TestRunWritesImage(t *testing.T) {
	input := writeFile(t, "scan.txt", "0 1 2\n3 4 5\n6 7 8\n")
	out := filepath.Join(t.TempDir(), "nested", "scan.png")
	var stdout, stderr bytes.Buffer

	code := run([]string{"-o", out, "--scale", "4", "-c", "viridis", input}, nil, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Empty(t, stdout.String())
}

func TestRunStdoutAndStdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-o", "-", "-"}, strings.NewReader("[[1, 2], [3, 4]]"), &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.True(t, strings.HasPrefix(stdout.String(), "\x89PNG"))
}

func TestRunPreview(t *testing.T) {
	input := writeFile(t, "scan.txt", "# rows=2 cols=2\n1 2\n3 4\n")
	var stdout, stderr bytes.Buffer
	code := run([]string{"--preview", "-o", filepath.Join(t.TempDir(), "a.png"), input}, nil, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "▀")

	code = run([]string{"--preview", "-o", "-", input}, nil, &stdout, &stderr)
	assert.Equal(t, exitMalformed, code)
}

func TestRunExitCodes(t *testing.T) {
	good := writeFile(t, "good.txt", "# rows=2 cols=2\n1 2\n3 4\n")
	bad := writeFile(t, "bad.txt", "LINE OK N=3 IDX=0 DIR=+1\n1,2\n")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no input", nil, exitMalformed},
		{"unknown flag", []string{"--bogus", good}, exitMalformed},
		{"help", []string{"--help"}, exitOK},
		{"malformed transcript", []string{"-o", filepath.Join(t.TempDir(), "a.png"), bad}, exitMalformed},
		{"bad colormap", []string{"-c", "rainbow", good}, exitMalformed},
		{"oversized scale", []string{"--scale", "1099511627776", "-o", filepath.Join(t.TempDir(), "a.png"), good}, exitMalformed},
		{"empty bounds", []string{"-n", "fixed", "--min", "2", "--max", "2", good}, exitMalformed},
		{"missing transcript", []string{filepath.Join(t.TempDir(), "missing.txt")}, exitFailure},
		{"unwritable output", []string{"-o", filepath.Join(good, "a.png"), good}, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, nil, &stdout, &stderr), stderr.String())
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitMalformed, exitCode(scan.Malformedf("x")))
	assert.Equal(t, exitFailure, exitCode(scan.IOErrorf("x")))
	assert.Equal(t, exitFailure, exitCode(errors.New("x")))
}
