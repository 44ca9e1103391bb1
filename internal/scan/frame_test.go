package scan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(rows, cols int) []Sample {
	out := make([]Sample, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, Sample{Row: r, Col: c, Value: float64(r*cols + c)})
		}
	}
	return out
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(2, 3, grid(2, 3))
	require.NoError(t, err)

	rows, cols := f.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 5.0, f.At(1, 2))
	assert.Equal(t, []float64{3, 4, 5}, f.Row(1))
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, f.Values())

	lo, hi := f.Bounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 5.0, hi)
	assert.Len(t, f.Samples(), 6)
}

func TestNewFrameAcceptsAnyOrder(t *testing.T) {
	samples := grid(2, 2)
	samples[0], samples[3] = samples[3], samples[0]

	f, err := NewFrame(2, 2, samples)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.At(0, 0))
	assert.Equal(t, 3.0, f.At(1, 1))
}

func TestNewFrameRejects(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		samples    []Sample
		contains   string
	}{
		{"zero rows", 0, 3, nil, "empty grid"},
		{"zero cols", 3, 0, nil, "empty grid"},
		{"duplicate", 2, 2, append(grid(2, 2)[:3], Sample{Row: 0, Col: 0, Value: 9}), "duplicate sample at (0,0)"},
		{"missing", 2, 2, grid(2, 2)[:3], "first missing position is (1,1)"},
		{"too many", 1, 2, grid(1, 3), "outside the 1x2 grid"},
		{"negative", 2, 2, []Sample{{Row: -1, Col: 0}}, "outside"},
		{"nan", 1, 1, []Sample{{Value: math.NaN()}}, "not a finite value"},
		{"inf", 1, 1, []Sample{{Value: math.Inf(1)}}, "not a finite value"},
		{"overflowing extent", math.MaxInt/2 + 1, 4, []Sample{{Value: 1}}, "too large"},
		{"huge sparse extent", 3_000_000_000, 3_000_000_000, []Sample{{Value: 1}}, "first missing position is (0,1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrame(tt.rows, tt.cols, tt.samples)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFromRows(t *testing.T) {
	t.Run("row-major", func(t *testing.T) {
		f, err := FromRows([][]float64{{1, 2}, {3, 4}}, RowMajor)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4}, f.Values())
	})

	t.Run("boustrophedon reverses odd rows", func(t *testing.T) {
		f, err := FromRows([][]float64{{1, 2, 3}, {6, 5, 4}, {7, 8, 9}}, Boustrophedon)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, f.Values())
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := FromRows([][]float64{{1, 2}, {3}}, RowMajor)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromRows(nil, RowMajor)
		assert.ErrorIs(t, err, ErrMalformedInput)

		_, err = FromRows([][]float64{{}}, RowMajor)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestFromSequence(t *testing.T) {
	f, err := FromSequence(2, 2, []float64{1, 2, 4, 3}, Boustrophedon)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, f.Values())

	_, err = FromSequence(3, 3, []float64{1, 2, 3}, RowMajor)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = FromSequence(0, 3, nil, RowMajor)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = FromSequence(math.MaxInt/2+1, 4, []float64{1}, RowMajor)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("Serpentine")
	require.NoError(t, err)
	assert.Equal(t, Boustrophedon, o)
	assert.Equal(t, "boustrophedon", o.String())

	o, err = ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, RowMajor, o)

	_, err = ParseOrder("spiral")
	assert.ErrorIs(t, err, ErrMalformedInput)
}
