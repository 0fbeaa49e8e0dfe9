package cactusplot

// Axis limits.
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Used when nothing visible has data.
var DefaultBounds = Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1}

func (b Bounds) union(o Bounds) Bounds {
	return Bounds{
		XMin: Min(b.XMin, o.XMin),
		XMax: Max(b.XMax, o.XMax),
		YMin: Min(b.YMin, o.YMin),
		YMax: Max(b.YMax, o.YMax),
	}
}

// Largest padding fraction Padded applies.
const maxPadding = 0.5

// Padded returns bounds suitable for axis limits: a zero-width range is
// widened to +/-1 around its value, then each axis grows by fraction of its
// span on both sides. fraction is clamped to [0, 0.5].
func (b Bounds) Padded(fraction float64) Bounds {
	fraction = Clamp(fraction, 0, maxPadding)
	xMin, xMax := widen(b.XMin, b.XMax)
	yMin, yMax := widen(b.YMin, b.YMax)

	xPad := (xMax - xMin) * fraction
	yPad := (yMax - yMin) * fraction

	return Bounds{
		XMin: xMin - xPad,
		XMax: xMax + xPad,
		YMin: yMin - yPad,
		YMax: yMax + yPad,
	}
}

func widen(lo, hi float64) (float64, float64) {
	if hi-lo < 1e-12 {
		return lo - 1, hi + 1
	}
	return lo, hi
}

// Autoscale returns the tight bounding box of every visible, non-empty
// dataset. Hidden datasets do not count. With nothing to show it returns
// DefaultBounds.
func Autoscale(store *DatasetStore) Bounds {
	var (
		bounds Bounds
		found  bool
	)

	for d := range store.All() {
		if !d.Visible {
			continue
		}
		b, ok := d.Series.Bounds()
		if !ok {
			continue
		}
		if !found {
			bounds = b
			found = true
			continue
		}
		bounds = bounds.union(b)
	}

	if !found {
		return DefaultBounds
	}
	return bounds
}
