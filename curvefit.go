package cactusplot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Upper bound on Nelder-Mead iterations for one fit. Well conditioned data
// converges in a few hundred.
const fitIterations = 20000

type curveModel func(params []float64, x float64) float64

// Minimizes the sum of squared residuals of model over s, starting at
// initial. Parameter sets the model cannot evaluate score as the worst
// possible fit.
func leastSquares(s Series, model curveModel, initial []float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			var sum float64
			for i, x := range s.xs {
				r := model(params, x) - s.ys[i]
				sum += r * r
			}
			if !isFinite(sum) {
				return math.MaxFloat64
			}
			return sum
		},
	}

	settings := &optimize.Settings{MajorIterations: fitIterations}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: fit failed: %v", ErrInvalidOperation, err)
	}
	if result.F == math.MaxFloat64 {
		return nil, fmt.Errorf("%w: fit did not find a finite solution", ErrInvalidOperation)
	}
	return result.X, nil
}

// Evaluates the fitted model at the sample positions of s.
func fittedSeries(s Series, model curveModel, params []float64) (Series, float64, error) {
	points := make([]Point, s.Len())
	ys := make([]float64, s.Len())
	for i, x := range s.xs {
		ys[i] = model(params, x)
		points[i] = Point{X: x, Y: ys[i]}
	}

	fitted, err := SeriesFromPoints(points)
	if err != nil {
		return Series{}, 0, fmt.Errorf("%w: fitted curve is not finite", ErrInvalidOperation)
	}
	return fitted, stat.RSquaredFrom(ys, s.ys, nil), nil
}

func checkFitInput(s Series, name string) error {
	if n := s.Len(); n < 3 {
		return fmt.Errorf("%w: %s fit needs at least 3 points, got %d", ErrInsufficientData, name, n)
	}
	if floats.Min(s.xs) == floats.Max(s.xs) {
		return fmt.Errorf("%w: %s fit needs at least two distinct x values", ErrInvalidOperation, name)
	}
	if floats.Min(s.ys) == floats.Max(s.ys) {
		return fmt.Errorf("%w: %s fit needs at least two distinct y values", ErrInvalidOperation, name)
	}
	return nil
}

// Returns the x of the sample whose y is closest to target.
func xNearestY(s Series, target float64) float64 {
	best := 0
	for i, y := range s.ys {
		if math.Abs(y-target) < math.Abs(s.ys[best]-target) {
			best = i
		}
	}
	return s.xs[best]
}

// The outcome of fitting y = Offset + Amplitude / (1 + exp(-Steepness*(x - Inflection))).
type SigmoidFitResult struct {
	Offset     float64
	Amplitude  float64
	Steepness  float64
	Inflection float64
	RSquared   float64
}

func (r SigmoidFitResult) String() string {
	return fmt.Sprintf("y = %.4f + %.4f / (1 + exp(-%.4f(x - %.4f))) (R² = %.4f)",
		r.Offset, r.Amplitude, r.Steepness, r.Inflection, r.RSquared)
}

func sigmoid(params []float64, x float64) float64 {
	offset, amplitude, steepness, inflection := params[0], params[1], params[2], params[3]
	return offset + amplitude/(1+math.Exp(-steepness*(x-inflection)))
}

// Fits a logistic curve through the samples and returns it evaluated at the
// same x values.
func SigmoidFitSeries(s Series) (Series, SigmoidFitResult, error) {
	if err := checkFitInput(s, "sigmoid"); err != nil {
		return Series{}, SigmoidFitResult{}, err
	}

	yMin, yMax := floats.Min(s.ys), floats.Max(s.ys)
	steepness := 4 / (floats.Max(s.xs) - floats.Min(s.xs))
	if _, slope := stat.LinearRegression(s.xs, s.ys, nil, false); slope < 0 {
		steepness = -steepness
	}
	initial := []float64{yMin, yMax - yMin, steepness, xNearestY(s, (yMin+yMax)/2)}

	params, err := leastSquares(s, sigmoid, initial)
	if err != nil {
		return Series{}, SigmoidFitResult{}, err
	}

	fitted, r2, err := fittedSeries(s, sigmoid, params)
	if err != nil {
		return Series{}, SigmoidFitResult{}, err
	}

	return fitted, SigmoidFitResult{
		Offset:     params[0],
		Amplitude:  params[1],
		Steepness:  params[2],
		Inflection: params[3],
		RSquared:   r2,
	}, nil
}

// The outcome of fitting y = MaxResponse * x^Coefficient / (HalfMax^Coefficient + x^Coefficient).
type HillFitResult struct {
	MaxResponse float64
	HalfMax     float64
	Coefficient float64
	RSquared    float64
}

func (r HillFitResult) String() string {
	return fmt.Sprintf("y = %.4f * x^%.4f / (%.4f^%.4f + x^%.4f) (R² = %.4f)",
		r.MaxResponse, r.Coefficient, r.HalfMax, r.Coefficient, r.Coefficient, r.RSquared)
}

func hill(params []float64, x float64) float64 {
	maxResponse, halfMax, coefficient := params[0], params[1], params[2]
	if halfMax <= 0 {
		return math.NaN()
	}
	xn := math.Pow(x, coefficient)
	return maxResponse * xn / (math.Pow(halfMax, coefficient) + xn)
}

// Fits a Hill dose-response curve through the samples and returns it
// evaluated at the same x values. Every x must be non-negative.
func HillFitSeries(s Series) (Series, HillFitResult, error) {
	if err := checkFitInput(s, "hill"); err != nil {
		return Series{}, HillFitResult{}, err
	}
	if xMin := floats.Min(s.xs); xMin < 0 {
		return Series{}, HillFitResult{}, fmt.Errorf("%w: hill fit needs non-negative x values, got %g", ErrInvalidOperation, xMin)
	}

	yMax := floats.Max(s.ys)
	initial := []float64{yMax, xNearestY(s, yMax/2), 2}
	if initial[1] <= 0 {
		initial[1] = floats.Max(s.xs) / 2
	}

	params, err := leastSquares(s, hill, initial)
	if err != nil {
		return Series{}, HillFitResult{}, err
	}

	fitted, r2, err := fittedSeries(s, hill, params)
	if err != nil {
		return Series{}, HillFitResult{}, err
	}

	return fitted, HillFitResult{
		MaxResponse: params[0],
		HalfMax:     params[1],
		Coefficient: params[2],
		RSquared:    r2,
	}, nil
}
