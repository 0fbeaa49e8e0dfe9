package cactusplot

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// RenderSurface is whatever draws the plot. Ids are the only handles shared
// with it.
type RenderSurface interface {
	AddSeries(ctx context.Context, id DatasetID, series Series, style Style) error
	UpdateSeriesStyle(ctx context.Context, id DatasetID, style Style) error
	UpdateSeriesData(ctx context.Context, id DatasetID, series Series) error
	RemoveSeries(ctx context.Context, id DatasetID) error
	SetAxisLimits(ctx context.Context, bounds Bounds) error
}

type SceneOpKind int

const (
	OpRemove SceneOpKind = iota
	OpAdd
	OpUpdateData
	OpUpdateStyle
)

func (k SceneOpKind) String() string {
	switch k {
	case OpRemove:
		return "remove"
	case OpAdd:
		return "add"
	case OpUpdateData:
		return "update_data"
	case OpUpdateStyle:
		return "update_style"
	}
	return fmt.Sprintf("SceneOpKind(%d)", int(k))
}

// One change to the rendered scene. Series is set for OpAdd and
// OpUpdateData, Style for OpAdd and OpUpdateStyle.
type SceneOp struct {
	Kind   SceneOpKind
	ID     DatasetID
	Series Series
	Style  Style
}

type SceneDelta struct {
	Ops []SceneOp
}

func (d SceneDelta) Empty() bool {
	return len(d.Ops) == 0
}

// What is currently drawn for one dataset.
type RenderedSceneEntry struct {
	DataRevision  uint64
	StyleRevision uint64
	Style         Style
}

// PlotSynchronizer keeps a render surface consistent with a DatasetStore. It
// remembers what it last told the surface and emits only the difference.
type PlotSynchronizer struct {
	entries map[DatasetID]RenderedSceneEntry
	order   []DatasetID // order in which entries were added

	logger logrus.FieldLogger
}

func NewPlotSynchronizer() *PlotSynchronizer {
	return &PlotSynchronizer{
		entries: make(map[DatasetID]RenderedSceneEntry),
		logger:  logrus.WithField("tag", "PlotSynchronizer"),
	}
}

// Reconcile computes the operations that bring the scene in line with the
// store and records the new scene as rendered. It never modifies the store.
//
// Removes are emitted first so that the surface never holds two entries for
// the same legend slot; the remaining operations follow store order. Calling
// Reconcile again without touching the store returns an empty delta.
func (p *PlotSynchronizer) Reconcile(store *DatasetStore) SceneDelta {
	var delta SceneDelta

	for _, id := range p.order {
		if _, ok := store.Get(id); !ok {
			delta.Ops = append(delta.Ops, SceneOp{Kind: OpRemove, ID: id})
			delete(p.entries, id)
		}
	}
	p.order = slices.DeleteFunc(p.order, func(id DatasetID) bool {
		_, ok := p.entries[id]
		return !ok
	})

	for d := range store.All() {
		style := d.Style()
		entry, ok := p.entries[d.ID]
		if !ok {
			delta.Ops = append(delta.Ops, SceneOp{Kind: OpAdd, ID: d.ID, Series: d.Series, Style: style})
			p.entries[d.ID] = RenderedSceneEntry{
				DataRevision:  d.DataRevision,
				StyleRevision: d.StyleRevision,
				Style:         style,
			}
			p.order = append(p.order, d.ID)
			continue
		}

		if d.DataRevision != entry.DataRevision {
			delta.Ops = append(delta.Ops, SceneOp{Kind: OpUpdateData, ID: d.ID, Series: d.Series})
			entry.DataRevision = d.DataRevision
		}

		// A style revision that ends up where it started (toggling twice)
		// needs no redraw.
		if d.StyleRevision != entry.StyleRevision {
			if style != entry.Style {
				delta.Ops = append(delta.Ops, SceneOp{Kind: OpUpdateStyle, ID: d.ID, Style: style})
				entry.Style = style
			}
			entry.StyleRevision = d.StyleRevision
		}

		p.entries[d.ID] = entry
	}

	if !delta.Empty() {
		p.logger.WithField("ops", len(delta.Ops)).Debug("reconciled scene")
	}

	return delta
}

// Entry returns what was last rendered for the dataset.
func (p *PlotSynchronizer) Entry(id DatasetID) (RenderedSceneEntry, bool) {
	entry, ok := p.entries[id]
	return entry, ok
}

// Rendered returns the ids currently in the scene, in the order they were
// added.
func (p *PlotSynchronizer) Rendered() []DatasetID {
	return slices.Clone(p.order)
}

// Forget drops the whole snapshot, so the next Reconcile re-adds every
// dataset. Used when the surface has been reset.
func (p *PlotSynchronizer) Forget() {
	p.entries = make(map[DatasetID]RenderedSceneEntry)
	p.order = nil
}

// Apply pushes a delta to the surface in order. It stops at the first error.
func Apply(ctx context.Context, delta SceneDelta, surface RenderSurface) error {
	for _, op := range delta.Ops {
		var err error
		switch op.Kind {
		case OpRemove:
			err = surface.RemoveSeries(ctx, op.ID)
		case OpAdd:
			err = surface.AddSeries(ctx, op.ID, op.Series, op.Style)
		case OpUpdateData:
			err = surface.UpdateSeriesData(ctx, op.ID, op.Series)
		case OpUpdateStyle:
			err = surface.UpdateSeriesStyle(ctx, op.ID, op.Style)
		default:
			err = fmt.Errorf("unknown scene op %v", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", op.Kind, op.ID, err)
		}
	}
	return nil
}
