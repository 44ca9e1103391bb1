package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGeometryLinearSize(t *testing.T) {
	tests := []struct {
		zoom, down, want int
	}{
		{1, 1, 65536},
		{1, 128, 512},
		{256, 256, 1},
		{4, 128, 128},
		{0, 0, 65536},
	}
	for _, tt := range tests {
		g := Geometry{Zoom: tt.zoom, Downsample: tt.down}
		assert.Equal(t, tt.want, g.LinearSize(), "zoom %d down %d", tt.zoom, tt.down)
	}
}

func TestGeometryCodeWindow(t *testing.T) {
	first, last, stride := Geometry{Zoom: 1, Downsample: 1}.CodeWindow()
	assert.Equal(t, 0, first)
	assert.Equal(t, 65535, last)
	assert.Equal(t, 1, stride)

	first, last, stride = Geometry{Zoom: 2, Downsample: 512}.CodeWindow()
	assert.Equal(t, 16384, first)
	assert.Equal(t, 512, stride)
	assert.Equal(t, 16384+63*512, last)
}

func TestGeometryValidate(t *testing.T) {
	assert.NoError(t, Geometry{}.Validate(3, 7))
	assert.NoError(t, Geometry{Zoom: 4, Downsample: 128}.Validate(128, 128))
	assert.ErrorIs(t, Geometry{Zoom: 4, Downsample: 128}.Validate(128, 127), ErrMalformedInput)
	assert.ErrorIs(t, Geometry{Zoom: -1, Downsample: 2}.Validate(1, 1), ErrMalformedInput)
}

func TestGeometryEstimatedDuration(t *testing.T) {
	g := Geometry{Zoom: 1, Downsample: 256}
	assert.Equal(t, 256*256*10*time.Microsecond, g.EstimatedDuration())
}
