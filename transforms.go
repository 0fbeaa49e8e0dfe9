package cactusplot

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrEmptyResult      = errors.New("operation produced no data")
	ErrInsufficientData = errors.New("not enough data points")
)

// Multiplies every y value by factor.
func RescaleSeries(s Series, factor float64) (Series, error) {
	if !isFinite(factor) {
		return Series{}, fmt.Errorf("%w: scale factor must be finite, got %v", ErrInvalidOperation, factor)
	}

	ys := s.Ys()
	floats.Scale(factor, ys)
	return NewSeries(s.xs, ys)
}

// Adds delta to every y value.
func OffsetSeries(s Series, delta float64) (Series, error) {
	if !isFinite(delta) {
		return Series{}, fmt.Errorf("%w: offset must be finite, got %v", ErrInvalidOperation, delta)
	}

	ys := s.Ys()
	floats.AddConst(delta, ys)
	return NewSeries(s.xs, ys)
}

// Keeps the samples with xMin <= x <= xMax, in their original order.
func RestrictSeries(s Series, xMin, xMax float64) (Series, error) {
	if !isFinite(xMin) || !isFinite(xMax) {
		return Series{}, fmt.Errorf("%w: restrict bounds must be finite", ErrInvalidOperation)
	}
	if xMin > xMax {
		return Series{}, fmt.Errorf("%w: restrict x_min (%g) is greater than x_max (%g)", ErrInvalidOperation, xMin, xMax)
	}

	var xs, ys []float64
	for i, x := range s.xs {
		if x >= xMin && x <= xMax {
			xs = append(xs, x)
			ys = append(ys, s.ys[i])
		}
	}

	if len(xs) == 0 {
		return Series{}, fmt.Errorf("%w: no samples in [%g, %g]", ErrEmptyResult, xMin, xMax)
	}

	return NewSeries(xs, ys)
}

// Finite difference between consecutive samples, placed at the midpoint of
// each pair. The result has one point fewer than the input. Pairs that share
// the same x have no defined slope and are dropped.
func DerivativeSeries(s Series) (Series, error) {
	n := s.Len()
	if n < 2 {
		return Series{}, fmt.Errorf("%w: derivative needs at least 2 points, got %d", ErrInsufficientData, n)
	}

	xs := make([]float64, 0, n-1)
	ys := make([]float64, 0, n-1)
	for i := 0; i < n-1; i++ {
		dx := s.xs[i+1] - s.xs[i]
		if dx == 0 {
			continue
		}
		xs = append(xs, (s.xs[i]+s.xs[i+1])/2)
		ys = append(ys, (s.ys[i+1]-s.ys[i])/dx)
	}

	if len(xs) == 0 {
		return Series{}, fmt.Errorf("%w: all samples share the same x", ErrEmptyResult)
	}

	return NewSeries(xs, ys)
}

// Averages x and y over a sliding window. The result has len-window+1 points.
func RollingAverageSeries(s Series, window int) (Series, error) {
	if window < 1 {
		return Series{}, fmt.Errorf("%w: window must be at least 1, got %d", ErrInvalidOperation, window)
	}
	n := s.Len()
	if n < window {
		return Series{}, fmt.Errorf("%w: window %d is larger than the %d available points", ErrInsufficientData, window, n)
	}

	xs := make([]float64, 0, n-window+1)
	ys := make([]float64, 0, n-window+1)
	for i := 0; i+window <= n; i++ {
		xs = append(xs, stat.Mean(s.xs[i:i+window], nil))
		ys = append(ys, stat.Mean(s.ys[i:i+window], nil))
	}

	return NewSeries(xs, ys)
}

// The outcome of a least-squares line fit y = Intercept + Slope*x.
type LinearFitResult struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

func (r LinearFitResult) String() string {
	return fmt.Sprintf("y = %.4fx + %.4f (R² = %.4f)", r.Slope, r.Intercept, r.RSquared)
}

// Fits a line through the samples and returns it evaluated at the same x
// values.
func LinearFitSeries(s Series) (Series, LinearFitResult, error) {
	if n := s.Len(); n < 3 {
		return Series{}, LinearFitResult{}, fmt.Errorf("%w: linear fit needs at least 3 points, got %d", ErrInsufficientData, n)
	}
	if floats.Min(s.xs) == floats.Max(s.xs) {
		return Series{}, LinearFitResult{}, fmt.Errorf("%w: linear fit needs at least two distinct x values", ErrInvalidOperation)
	}

	alpha, beta := stat.LinearRegression(s.xs, s.ys, nil, false)
	result := LinearFitResult{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(s.xs, s.ys, nil, alpha, beta),
	}

	ys := make([]float64, s.Len())
	for i, x := range s.xs {
		ys[i] = alpha + beta*x
	}

	fitted, err := NewSeries(s.xs, ys)
	if err != nil {
		return Series{}, LinearFitResult{}, err
	}
	return fitted, result, nil
}
