package cactusplot

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(store *DatasetStore) []string {
	var out []string
	for d := range store.All() {
		out = append(out, d.Name)
	}
	return out
}

func insertNamed(store *DatasetStore, name string) DatasetID {
	return store.Insert(NewDataset(name, MustSeries([]float64{0, 1}, []float64{0, 1}), nil))
}

func TestDatasetStore(t *testing.T) {
	t.Run("remove keeps order", func(t *testing.T) {
		store := NewDatasetStore()
		insertNamed(store, "A")
		b := insertNamed(store, "B")
		insertNamed(store, "C")

		require.NoError(t, store.Remove(b))
		assert.Equal(t, []string{"A", "C"}, names(store))
		assert.Equal(t, 2, store.Len())

		_, ok := store.Get(b)
		assert.False(t, ok)
	})

	t.Run("ids are not reused", func(t *testing.T) {
		store := NewDatasetStore()
		a := insertNamed(store, "A")
		require.NoError(t, store.Remove(a))
		b := insertNamed(store, "B")

		assert.NotEqual(t, a, b)
		assert.NotZero(t, a)
	})

	t.Run("insert ignores the caller's id", func(t *testing.T) {
		store := NewDatasetStore()
		d := NewDataset("A", Series{}, nil)
		d.ID = 99
		id := store.Insert(d)

		got, ok := store.Get(id)
		require.True(t, ok)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, uint64(1), got.DataRevision)
		assert.Equal(t, uint64(1), got.StyleRevision)
	})

	t.Run("palette", func(t *testing.T) {
		store := NewDatasetStore()
		first := insertNamed(store, "A")
		second := insertNamed(store, "B")

		custom := NewDataset("C", Series{}, nil)
		custom.Color = DefaultPalette[5]
		third := store.Insert(custom)

		d1, _ := store.Get(first)
		d2, _ := store.Get(second)
		d3, _ := store.Get(third)
		assert.Equal(t, DefaultPalette[0], d1.Color)
		assert.Equal(t, DefaultPalette[1], d2.Color)
		assert.Equal(t, DefaultPalette[5], d3.Color)

		assert.Equal(t, DefaultPalette[0], PaletteColor(len(DefaultPalette)))
	})

	t.Run("selection indices", func(t *testing.T) {
		store := NewDatasetStore()
		a := insertNamed(store, "A")
		b := insertNamed(store, "B")

		id, err := store.IDAt(1)
		require.NoError(t, err)
		assert.Equal(t, b, id)

		_, err = store.IDAt(2)
		assert.ErrorIs(t, err, ErrDatasetNotFound)
		_, err = store.IDAt(-1)
		assert.ErrorIs(t, err, ErrDatasetNotFound)

		id, err = store.IDAt(0)
		require.NoError(t, err)
		assert.Equal(t, a, id)

		// Removing shifts the later datasets up.
		require.NoError(t, store.Remove(a))
		id, err = store.IDAt(0)
		require.NoError(t, err)
		assert.Equal(t, b, id)
		_, err = store.IDAt(1)
		assert.ErrorIs(t, err, ErrDatasetNotFound)
	})

	t.Run("name taken", func(t *testing.T) {
		store := NewDatasetStore()
		a := insertNamed(store, "A")
		b := insertNamed(store, "B")

		assert.True(t, store.NameTaken("A", b))
		assert.False(t, store.NameTaken("A", a))
		assert.False(t, store.NameTaken("C", 0))
	})

	t.Run("stale id", func(t *testing.T) {
		store := NewDatasetStore()
		_, err := store.Lookup(7)
		assert.ErrorIs(t, err, ErrDatasetNotFound)
		assert.ErrorIs(t, store.Remove(7), ErrDatasetNotFound)
	})

	t.Run("all stops early", func(t *testing.T) {
		store := NewDatasetStore()
		insertNamed(store, "A")
		insertNamed(store, "B")

		var seen []string
		for d := range store.All() {
			seen = append(seen, d.Name)
			break
		}
		assert.Equal(t, []string{"A"}, seen)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := NewDatasetStore()
		id := insertNamed(store, "A")

		d, _ := store.Get(id)
		d.Name = "changed"

		assert.True(t, slices.Equal([]string{"A"}, names(store)))
	})
}
