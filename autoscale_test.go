package cactusplot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoscale(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		assert.Equal(t, DefaultBounds, Autoscale(NewDatasetStore()))
	})

	t.Run("union of visible datasets", func(t *testing.T) {
		store := NewDatasetStore()
		store.Insert(NewDataset("a", MustSeries([]float64{0, 1}, []float64{-2, 3}), nil))
		store.Insert(NewDataset("b", MustSeries([]float64{-5, 2}, []float64{0, 1}), nil))
		store.Insert(NewDataset("empty", Series{}, nil))

		assert.Equal(t, Bounds{XMin: -5, XMax: 2, YMin: -2, YMax: 3}, Autoscale(store))
	})

	t.Run("hidden datasets are ignored", func(t *testing.T) {
		store := NewDatasetStore()
		store.Insert(NewDataset("a", MustSeries([]float64{0, 1}, []float64{0, 1}), nil))
		hidden := store.Insert(NewDataset("b", MustSeries([]float64{100}, []float64{100}), nil))
		require.NoError(t, NewDatasetEditor(store).Apply(hidden, ToggleVisibility{}))

		assert.Equal(t, Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1}, Autoscale(store))

		tall := store.Insert(NewDataset("c", MustSeries([]float64{0, 1, 2}, []float64{100, 150, 200}), nil))
		require.NoError(t, NewDatasetEditor(store).Apply(tall, ToggleVisibility{}))
		store.Insert(NewDataset("d", MustSeries([]float64{0, 1, 2}, []float64{0, 10, 5}), nil))
		assert.LessOrEqual(t, Autoscale(store).YMax, 10.0)
	})

	t.Run("nothing visible", func(t *testing.T) {
		store := NewDatasetStore()
		id := store.Insert(NewDataset("a", MustSeries([]float64{3}, []float64{3}), nil))
		require.NoError(t, NewDatasetEditor(store).Apply(id, ToggleVisibility{}))

		assert.Equal(t, DefaultBounds, Autoscale(store))
	})
}

func TestBoundsPadded(t *testing.T) {
	b := Bounds{XMin: 0, XMax: 10, YMin: -1, YMax: 1}
	assert.Equal(t, b, b.Padded(0))
	assert.Equal(t, Bounds{XMin: -1, XMax: 11, YMin: -1.2, YMax: 1.2}, b.Padded(0.1))

	// A single point still gets a visible range.
	point := Bounds{XMin: 2, XMax: 2, YMin: 5, YMax: 5}
	assert.Equal(t, Bounds{XMin: 1, XMax: 3, YMin: 4, YMax: 6}, point.Padded(0))

	t.Run("fraction is clamped", func(t *testing.T) {
		assert.Equal(t, b.Padded(0), b.Padded(-1))
		assert.Equal(t, Bounds{XMin: -5, XMax: 15, YMin: -2, YMax: 2}, b.Padded(3))
	})
}
