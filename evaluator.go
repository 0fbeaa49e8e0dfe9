package cactusplot

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var ErrInvalidDomain = errors.New("invalid domain")

// DefaultMaxPoints caps the number of samples a single domain may request.
const DefaultMaxPoints = 1_000_000

// The sampling range of a generated function. Both ends are inclusive.
type Domain struct {
	XMin    float64 `json:"x_min"`
	XMax    float64 `json:"x_max"`
	NPoints int     `json:"n_points"`
}

func (d Domain) Validate() error {
	return d.ValidateLimit(DefaultMaxPoints)
}

// ValidateLimit is Validate with a caller-chosen cap on NPoints.
func (d Domain) ValidateLimit(maxPoints int) error {
	if d.NPoints < 2 {
		return fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidDomain, d.NPoints)
	}

	if d.NPoints > maxPoints {
		return fmt.Errorf("%w: %d points exceeds the limit of %d", ErrInvalidDomain, d.NPoints, maxPoints)
	}

	if !isFinite(d.XMin) || !isFinite(d.XMax) {
		return fmt.Errorf("%w: bounds must be finite", ErrInvalidDomain)
	}

	if !(d.XMin < d.XMax) {
		return fmt.Errorf("%w: x_min (%g) must be less than x_max (%g)", ErrInvalidDomain, d.XMin, d.XMax)
	}

	return nil
}

// Returns the i-th evenly spaced sample position. The last sample is pinned
// to XMax so that rounding never drops the end of the range.
func (d Domain) sampleAt(i int) float64 {
	if i == d.NPoints-1 {
		return d.XMax
	}
	step := (d.XMax - d.XMin) / float64(d.NPoints-1)
	return d.XMin + float64(i)*step
}

// Samples the program over the domain. Samples where the expression is not
// finite (for example 1/x at x=0) are skipped and logged, so discontinuous
// functions still render. If no sample at all is finite, the first
// *DomainError is returned instead of an empty series.
func (p *Program) Sample(domain Domain) (Series, error) {
	if err := domain.Validate(); err != nil {
		return Series{}, err
	}

	xs := make([]float64, 0, domain.NPoints)
	ys := make([]float64, 0, domain.NPoints)

	var firstErr error
	skipped := 0

	for i := 0; i < domain.NPoints; i++ {
		x := domain.sampleAt(i)
		y, err := p.Eval(x)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			skipped++
			continue
		}

		xs = append(xs, x)
		ys = append(ys, y)
	}

	if len(xs) == 0 {
		return Series{}, firstErr
	}

	if skipped > 0 {
		logrus.WithFields(logrus.Fields{
			"tag":        "Evaluator",
			"expression": p.source,
			"skipped":    skipped,
		}).Debug("skipped non-finite samples")
	}

	return NewSeries(xs, ys)
}

// Evaluate parses the expression and samples it over the domain. The domain
// is validated before the expression is parsed, so an invalid domain is
// always reported as ErrInvalidDomain.
func Evaluate(expression string, domain Domain) (Series, error) {
	if err := domain.Validate(); err != nil {
		return Series{}, err
	}

	program, err := ParseExpression(expression)
	if err != nil {
		return Series{}, err
	}

	return program.Sample(domain)
}
