package cactusplot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	t.Run("sin over [0, 2pi]", func(t *testing.T) {
		domain := Domain{XMin: 0, XMax: 2 * math.Pi, NPoints: 100}
		s, err := Evaluate("sin(x)", domain)
		require.NoError(t, err)

		require.Equal(t, 100, s.Len())
		assert.Equal(t, domain.XMin, s.At(0).X)
		assert.Equal(t, domain.XMax, s.At(99).X)
		for _, p := range s.Points() {
			assert.InDelta(t, math.Sin(p.X), p.Y, 1e-12)
		}
	})

	t.Run("evenly spaced", func(t *testing.T) {
		s, err := Evaluate("x", Domain{XMin: -1, XMax: 1, NPoints: 5})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{-1, -0.5, 0, 0.5, 1}, s.Xs(), 1e-15)
	})

	t.Run("singular samples are skipped", func(t *testing.T) {
		s, err := Evaluate("1/x", Domain{XMin: -1, XMax: 1, NPoints: 3})
		require.NoError(t, err)
		assert.Equal(t, []float64{-1, 1}, s.Xs())
		assert.Equal(t, []float64{-1, 1}, s.Ys())
	})

	t.Run("nothing finite", func(t *testing.T) {
		_, err := Evaluate("log(x)", Domain{XMin: -2, XMax: -1, NPoints: 10})
		var domainErr *DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, -2.0, domainErr.X)
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Evaluate("sin(", Domain{XMin: 0, XMax: 1, NPoints: 10})
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("empty range is a domain error", func(t *testing.T) {
		_, err := Evaluate("sin(x)", Domain{XMin: 0, XMax: 0, NPoints: 2})
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})
}

func TestEvaluateHitsBothEnds(t *testing.T) {
	bounds := [][2]float64{{0, 1}, {-1e6, 1e6}, {0.1, 0.3}, {-7.5, -7.25}, {1e-9, 2e-9}}
	for _, b := range bounds {
		for _, n := range []int{2, 3, 7, 100, 1001} {
			domain := Domain{XMin: b[0], XMax: b[1], NPoints: n}
			s, err := Evaluate("x", domain)
			require.NoError(t, err, domain)

			require.Equal(t, n, s.Len(), domain)
			assert.Equal(t, domain.XMin, s.At(0).X, domain)
			assert.Equal(t, domain.XMax, s.At(n-1).X, domain)
		}
	}
}

func TestDomainValidate(t *testing.T) {
	tests := []struct {
		name   string
		domain Domain
		valid  bool
	}{
		{"ok", Domain{XMin: 0, XMax: 1, NPoints: 2}, true},
		{"empty range", Domain{XMin: 0, XMax: 0, NPoints: 2}, false},
		{"reversed", Domain{XMin: 1, XMax: 0, NPoints: 10}, false},
		{"one point", Domain{XMin: 0, XMax: 1, NPoints: 1}, false},
		{"no points", Domain{XMin: 0, XMax: 1, NPoints: 0}, false},
		{"infinite", Domain{XMin: 0, XMax: math.Inf(1), NPoints: 10}, false},
		{"nan", Domain{XMin: math.NaN(), XMax: 1, NPoints: 10}, false},
		{"at limit", Domain{XMin: 0, XMax: 1, NPoints: DefaultMaxPoints}, true},
		{"over limit", Domain{XMin: 0, XMax: 1, NPoints: DefaultMaxPoints + 1}, false},
		{"huge", Domain{XMin: 0, XMax: 1, NPoints: 1 << 62}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.domain.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidDomain)
		})
	}

	t.Run("custom limit", func(t *testing.T) {
		d := Domain{XMin: 0, XMax: 1, NPoints: 11}
		assert.NoError(t, d.ValidateLimit(11))
		assert.ErrorIs(t, d.ValidateLimit(10), ErrInvalidDomain)
	})

	t.Run("oversized sample is rejected before allocating", func(t *testing.T) {
		p, err := ParseExpression("x")
		require.NoError(t, err)

		_, err = p.Sample(Domain{XMin: 0, XMax: 1, NPoints: 1 << 62})
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})

	t.Run("checked before parsing", func(t *testing.T) {
		// A broken expression over a broken domain reports the domain.
		_, err := Evaluate("sin(", Domain{XMin: 0, XMax: 0, NPoints: 2})
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})
}
