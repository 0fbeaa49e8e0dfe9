package cactusplot

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrLengthMismatch = errors.New("x and y must have the same length")
	ErrNonFinite      = errors.New("series values must be finite")
)

// A single sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is an immutable ordered sequence of (x, y) samples. X is not
// required to be monotonic, but line rendering assumes ascending x.
//
// The zero value is an empty series and is valid.
type Series struct {
	xs []float64
	ys []float64
}

// Creates a series from parallel x and y slices. The slices are copied, so
// the caller is free to reuse them. NaN and Inf values are rejected: producers
// are expected to filter them out before building the series.
func NewSeries(xs, ys []float64) (Series, error) {
	if len(xs) != len(ys) {
		return Series{}, fmt.Errorf("%w: x=%d, y=%d", ErrLengthMismatch, len(xs), len(ys))
	}

	for i := range xs {
		if !isFinite(xs[i]) || !isFinite(ys[i]) {
			return Series{}, fmt.Errorf("%w: sample %d is (%v, %v)", ErrNonFinite, i, xs[i], ys[i])
		}
	}

	return Series{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
	}, nil
}

// Like NewSeries but panics on invalid input. Only for literals in tests and
// for values whose validity was already established.
func MustSeries(xs, ys []float64) Series {
	s, err := NewSeries(xs, ys)
	if err != nil {
		panic(err)
	}
	return s
}

func SeriesFromPoints(points []Point) (Series, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return NewSeries(xs, ys)
}

func (s Series) Len() int {
	return len(s.xs)
}

func (s Series) IsEmpty() bool {
	return len(s.xs) == 0
}

func (s Series) At(i int) Point {
	return Point{X: s.xs[i], Y: s.ys[i]}
}

// Returns a copy of the x values.
func (s Series) Xs() []float64 {
	return append([]float64(nil), s.xs...)
}

// Returns a copy of the y values.
func (s Series) Ys() []float64 {
	return append([]float64(nil), s.ys...)
}

func (s Series) Points() []Point {
	points := make([]Point, len(s.xs))
	for i := range s.xs {
		points[i] = Point{X: s.xs[i], Y: s.ys[i]}
	}
	return points
}

// Bounds returns the tight bounding box of the samples. ok is false for an
// empty series.
func (s Series) Bounds() (b Bounds, ok bool) {
	if s.IsEmpty() {
		return Bounds{}, false
	}

	return Bounds{
		XMin: floats.Min(s.xs),
		XMax: floats.Max(s.xs),
		YMin: floats.Min(s.ys),
		YMax: floats.Max(s.ys),
	}, true
}

// Equal reports whether both series hold exactly the same samples.
func (s Series) Equal(other Series) bool {
	return floats.Equal(s.xs, other.xs) && floats.Equal(s.ys, other.ys)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
