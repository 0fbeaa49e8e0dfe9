package cactusplot

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetStore is the single source of truth for datasets. It keeps them in
// insertion order, which is also the legend and selection list order.
//
// Not safe for concurrent use: all mutation happens on the coordinator's
// goroutine.
type DatasetStore struct {
	order []DatasetID
	byID  map[DatasetID]*Dataset

	nextID   DatasetID
	inserted int // counts every insert, drives the palette
}

func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		byID:   make(map[DatasetID]*Dataset),
		nextID: 1,
	}
}

// Insert registers the dataset under a freshly minted id and returns it. Any
// id already set on the dataset is ignored. A dataset without a color gets
// the next palette color.
func (s *DatasetStore) Insert(d Dataset) DatasetID {
	id := s.nextID
	s.nextID++

	d.ID = id
	if d.Color.A == 0 {
		d.Color = PaletteColor(s.inserted)
	}
	d.DataRevision = 1
	d.StyleRevision = 1
	s.inserted++

	s.byID[id] = &d
	s.order = append(s.order, id)
	return id
}

func (s *DatasetStore) Get(id DatasetID) (Dataset, bool) {
	d, ok := s.byID[id]
	if !ok {
		return Dataset{}, false
	}
	return *d, true
}

// Lookup is Get with an error for stale ids.
func (s *DatasetStore) Lookup(id DatasetID) (Dataset, error) {
	d, ok := s.byID[id]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return *d, nil
}

func (s *DatasetStore) Remove(id DatasetID) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}

	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(other DatasetID) bool {
		return other == id
	})
	return nil
}

func (s *DatasetStore) Len() int {
	return len(s.order)
}

// All yields the datasets in insertion order. The sequence is lazy and reads
// the live store on every iteration; do not mutate the store while ranging
// over it.
func (s *DatasetStore) All() iter.Seq[Dataset] {
	return func(yield func(Dataset) bool) {
		for _, id := range s.order {
			if !yield(*s.byID[id]) {
				return
			}
		}
	}
}

// Maps a selection list index back to a dataset id.
func (s *DatasetStore) IDAt(index int) (DatasetID, error) {
	if index < 0 || index >= len(s.order) {
		return 0, fmt.Errorf("%w: no dataset at index %d", ErrDatasetNotFound, index)
	}
	return s.order[index], nil
}

// Reports whether a dataset other than except is already called name.
func (s *DatasetStore) NameTaken(name string, except DatasetID) bool {
	for _, id := range s.order {
		if id != except && s.byID[id].Name == name {
			return true
		}
	}
	return false
}

// Which revision counter an update bumps.
type changeKind int

const (
	changeStyle changeKind = 1 << iota
	changeData
)

// update runs fn on a copy of the dataset and commits the copy only if fn
// succeeds, so a failed edit is never visible through Get.
func (s *DatasetStore) update(id DatasetID, fn func(*Dataset) (changeKind, error)) error {
	current, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}

	draft := *current
	kind, err := fn(&draft)
	if err != nil {
		return err
	}

	draft.ID = id
	if kind&changeData != 0 {
		draft.DataRevision++
	}
	if kind&changeStyle != 0 {
		draft.StyleRevision++
	}

	*current = draft
	return nil
}
