package cactusplot

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/sirupsen/logrus"
)

// An edit requested by the user. Operations are plain values so they can be
// queued, logged and replayed; applying the same operation to the same
// dataset always gives the same result.
type Operation interface {
	Describe() string
	apply(*Dataset) (changeKind, error)
}

// An operation that rewrites the series. Only these can produce a derived
// dataset.
type SeriesOperation interface {
	Operation
	Transform(Series) (Series, error)
}

type Rescale struct{ Factor float64 }
type Offset struct{ Delta float64 }
type Restrict struct{ XMin, XMax float64 }
type Derivative struct{}
type RollingAverage struct{ Window int }
type LinearFit struct{}
type SigmoidFit struct{}
type HillFit struct{}

type Recolor struct{ Color color.RGBA }
type Rename struct{ Name string }
type ToggleVisibility struct{}
type SetLineStyle struct{ Style LineStyle }

func (op Rescale) Describe() string  { return fmt.Sprintf("rescale by %g", op.Factor) }
func (op Offset) Describe() string   { return fmt.Sprintf("offset by %g", op.Delta) }
func (op Restrict) Describe() string { return fmt.Sprintf("restrict to [%g, %g]", op.XMin, op.XMax) }
func (Derivative) Describe() string  { return "derivative" }
func (op RollingAverage) Describe() string {
	return fmt.Sprintf("rolling average (window %d)", op.Window)
}
func (LinearFit) Describe() string        { return "linear fit" }
func (SigmoidFit) Describe() string       { return "sigmoid fit" }
func (HillFit) Describe() string          { return "hill fit" }
func (op Recolor) Describe() string       { return "recolor to " + HexColor(op.Color) }
func (op Rename) Describe() string        { return fmt.Sprintf("rename to %q", op.Name) }
func (ToggleVisibility) Describe() string { return "toggle visibility" }
func (op SetLineStyle) Describe() string  { return "line style " + op.Style.String() }

func (op Rescale) Transform(s Series) (Series, error)  { return RescaleSeries(s, op.Factor) }
func (op Offset) Transform(s Series) (Series, error)   { return OffsetSeries(s, op.Delta) }
func (op Restrict) Transform(s Series) (Series, error) { return RestrictSeries(s, op.XMin, op.XMax) }
func (Derivative) Transform(s Series) (Series, error)  { return DerivativeSeries(s) }
func (op RollingAverage) Transform(s Series) (Series, error) {
	return RollingAverageSeries(s, op.Window)
}
func (op LinearFit) Transform(s Series) (Series, error) {
	fitted, _, err := op.Fit(s)
	return fitted, err
}
func (op SigmoidFit) Transform(s Series) (Series, error) {
	fitted, _, err := op.Fit(s)
	return fitted, err
}
func (op HillFit) Transform(s Series) (Series, error) {
	fitted, _, err := op.Fit(s)
	return fitted, err
}

// Curve fits also report the fitted parameters.
type fitter interface {
	Fit(Series) (Series, fmt.Stringer, error)
}

func (LinearFit) Fit(s Series) (Series, fmt.Stringer, error) {
	fitted, result, err := LinearFitSeries(s)
	return fitted, result, err
}

func (SigmoidFit) Fit(s Series) (Series, fmt.Stringer, error) {
	fitted, result, err := SigmoidFitSeries(s)
	return fitted, result, err
}

func (HillFit) Fit(s Series) (Series, fmt.Stringer, error) {
	fitted, result, err := HillFitSeries(s)
	return fitted, result, err
}

func applySeries(op SeriesOperation, d *Dataset) (changeKind, error) {
	series, err := op.Transform(d.Series)
	if err != nil {
		return 0, err
	}
	d.Series = series
	return changeData, nil
}

func (op Rescale) apply(d *Dataset) (changeKind, error)        { return applySeries(op, d) }
func (op Offset) apply(d *Dataset) (changeKind, error)         { return applySeries(op, d) }
func (op Restrict) apply(d *Dataset) (changeKind, error)       { return applySeries(op, d) }
func (op Derivative) apply(d *Dataset) (changeKind, error)     { return applySeries(op, d) }
func (op RollingAverage) apply(d *Dataset) (changeKind, error) { return applySeries(op, d) }
func (op LinearFit) apply(d *Dataset) (changeKind, error)      { return applySeries(op, d) }
func (op SigmoidFit) apply(d *Dataset) (changeKind, error)     { return applySeries(op, d) }
func (op HillFit) apply(d *Dataset) (changeKind, error)        { return applySeries(op, d) }

func (op Recolor) apply(d *Dataset) (changeKind, error) {
	d.Color = op.Color
	return changeStyle, nil
}

func (op Rename) apply(d *Dataset) (changeKind, error) {
	name := strings.TrimSpace(op.Name)
	if name == "" {
		return 0, fmt.Errorf("%w: name must not be empty", ErrInvalidOperation)
	}
	d.Name = name
	return changeStyle, nil
}

func (ToggleVisibility) apply(d *Dataset) (changeKind, error) {
	d.Visible = !d.Visible
	return changeStyle, nil
}

func (op SetLineStyle) apply(d *Dataset) (changeKind, error) {
	if op.Style < LineSolid || op.Style > LineMarkersOnly {
		return 0, fmt.Errorf("%w: unknown line style %d", ErrInvalidOperation, int(op.Style))
	}
	d.LineStyle = op.Style
	return changeStyle, nil
}

// DatasetEditor applies operations to datasets held by a store. Every edit
// goes through the store so that the revision counters stay in step with the
// data, and every edit is atomic.
type DatasetEditor struct {
	store  *DatasetStore
	logger logrus.FieldLogger
}

func NewDatasetEditor(store *DatasetStore) *DatasetEditor {
	return &DatasetEditor{
		store:  store,
		logger: logrus.WithField("tag", "DatasetEditor"),
	}
}

// Apply mutates the dataset in place. On error the dataset is unchanged.
func (e *DatasetEditor) Apply(id DatasetID, op Operation) error {
	err := e.store.update(id, op.apply)
	logger := e.logger.WithFields(logrus.Fields{
		"id": id,
		"op": op.Describe(),
	})
	if err != nil {
		logger.WithError(err).Debug("edit rejected")
		return err
	}

	logger.Debug("edit applied")
	return nil
}

// Derive applies a series operation to a copy of the dataset and inserts the
// result as a new dataset right after the existing ones. The source dataset
// is left untouched.
func (e *DatasetEditor) Derive(id DatasetID, op SeriesOperation) (DatasetID, error) {
	parent, err := e.store.Lookup(id)
	if err != nil {
		return 0, err
	}

	series, err := op.Transform(parent.Series)
	if err != nil {
		return 0, err
	}

	derived := NewDataset(
		fmt.Sprintf("%s (%s)", parent.Name, op.Describe()),
		series,
		Derived{ParentID: id, Operation: op.Describe()},
	)
	derived.LineStyle = parent.LineStyle

	newID := e.store.Insert(derived)
	e.logger.WithFields(logrus.Fields{
		"parent": id,
		"id":     newID,
		"op":     op.Describe(),
	}).Debug("derived dataset")

	return newID, nil
}
