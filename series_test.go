package cactusplot

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries(t *testing.T) {
	t.Run("copies input", func(t *testing.T) {
		xs := []float64{1, 2, 3}
		ys := []float64{2, 4, 6}
		s, err := NewSeries(xs, ys)
		require.NoError(t, err)

		xs[0] = 100
		assert.Equal(t, 1.0, s.At(0).X)
		assert.Equal(t, 3, s.Len())
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewSeries([]float64{1, 2}, []float64{1})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("non-finite", func(t *testing.T) {
		_, err := NewSeries([]float64{1, math.NaN()}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrNonFinite)

		_, err = NewSeries([]float64{1}, []float64{math.Inf(-1)})
		assert.ErrorIs(t, err, ErrNonFinite)
	})

	t.Run("empty is valid", func(t *testing.T) {
		s, err := NewSeries(nil, nil)
		require.NoError(t, err)
		assert.True(t, s.IsEmpty())
		assert.True(t, s.Equal(Series{}))
	})
}

func TestSeriesAccessors(t *testing.T) {
	s := MustSeries([]float64{3, 1, 2}, []float64{-1, 5, 0})

	if diff := cmp.Diff([]Point{{3, -1}, {1, 5}, {2, 0}}, s.Points()); diff != "" {
		t.Errorf("Points() mismatch (-want +got):\n%s", diff)
	}

	xs := s.Xs()
	xs[0] = 42
	assert.Equal(t, []float64{3, 1, 2}, s.Xs(), "Xs must return a copy")

	b, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, Bounds{XMin: 1, XMax: 3, YMin: -1, YMax: 5}, b)

	_, ok = Series{}.Bounds()
	assert.False(t, ok)
}

func TestSeriesFromPoints(t *testing.T) {
	points := []Point{{0, 1}, {1, 2}}
	s, err := SeriesFromPoints(points)
	require.NoError(t, err)
	assert.True(t, s.Equal(MustSeries([]float64{0, 1}, []float64{1, 2})))
	assert.False(t, s.Equal(MustSeries([]float64{0, 1}, []float64{1, 3})))

	_, err = SeriesFromPoints([]Point{{math.NaN(), 0}})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestMustSeriesPanics(t *testing.T) {
	assert.Panics(t, func() { MustSeries([]float64{1}, nil) })
}
