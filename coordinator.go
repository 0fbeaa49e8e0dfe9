package cactusplot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// One row of the dataset list widget.
type SelectionEntry struct {
	ID       DatasetID `json:"id"`
	Label    string    `json:"label"`
	Checked  bool      `json:"checked"`
	Selected bool      `json:"selected"`
}

type SelectionList interface {
	Refresh(ctx context.Context, entries []SelectionEntry) error
}

type StatusDisplay interface {
	SetStatus(ctx context.Context, message string, isError bool) error
}

// A surface that can drop everything it shows. After a failed update the
// coordinator resets it and redraws from scratch.
type resettableSurface interface {
	Reset(ctx context.Context)
}

// ErrOutputPath is returned when a save or export names a file outside the
// output directory.
var ErrOutputPath = errors.New("output path must be a relative path inside the output directory")

type CoordinatorConfig struct {
	Import      ImportConfig
	PlotOptions PlotOptions
	// Reset the axis limits after every change to the scene, not only on
	// an explicit AutoscaleAxes command.
	AutoscaleOnChange bool
	// Largest NPoints a GenerateFunction may ask for. Zero means
	// DefaultMaxPoints.
	MaxPoints int
	// SaveDataset and ExportPlot write here and nowhere else. Empty means
	// the working directory.
	OutputDir string
}

// Coordinator owns the DatasetStore and applies commands to it one at a
// time. After every command it reconciles the scene and refreshes the
// selection list and status line.
//
// User errors (bad expression, unreadable file, invalid edit) never abort:
// they are logged, shown on the status line, and the store stays as it was.
type Coordinator struct {
	store        *DatasetStore
	editor       *DatasetEditor
	importer     *Importer
	synchronizer *PlotSynchronizer

	surface   RenderSurface
	selection SelectionList
	status    StatusDisplay

	config   CoordinatorConfig
	selected DatasetID
	// Set by commands that reset the axis limits. The limits are pushed
	// during sync, after the datasets they describe.
	pendingAutoscale bool

	logger logrus.FieldLogger
}

// Any of surface, selection and status may be nil. Pass the same value
// three times when one object implements all of them.
func NewCoordinator(config CoordinatorConfig, surface RenderSurface, selection SelectionList, status StatusDisplay) *Coordinator {
	store := NewDatasetStore()
	return &Coordinator{
		store:        store,
		editor:       NewDatasetEditor(store),
		importer:     NewImporter(config.Import),
		synchronizer: NewPlotSynchronizer(),
		surface:      surface,
		selection:    selection,
		status:       status,
		config:       config,
		logger:       logrus.WithField("tag", "Coordinator"),
	}
}

// Store gives read access for tests and exporters. Callers must not keep
// the pointer across commands.
func (c *Coordinator) Store() *DatasetStore {
	return c.store
}

func (c *Coordinator) Selected() (DatasetID, bool) {
	return c.selected, c.selected != 0
}

// Run handles requests until ctx is done or the channel is closed. This is
// the single logical thread that mutates the store.
func (c *Coordinator) Run(ctx context.Context, requests <-chan CommandRequest) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, open := <-requests:
			if !open {
				c.logger.Info("command channel closed")
				return nil
			}

			err := c.Handle(ctx, req.Command)
			if req.Result != nil {
				req.Result <- err
			}
		}
	}
}

// Handle applies one command and pushes the resulting scene changes. The
// returned error is the user-facing failure of the command, if any; it has
// already been reported on the status display.
func (c *Coordinator) Handle(ctx context.Context, cmd Command) error {
	logger := c.logger.WithField("command", cmd.commandName())

	message, err := c.dispatch(ctx, cmd)
	if err != nil {
		logger.WithError(err).Warn("command failed")
		c.setStatus(ctx, "Error: "+err.Error(), true)
		return err
	}

	if err := c.sync(ctx); err != nil {
		// The surface is out of step with the store. Start over with a full
		// redraw on the next command.
		logger.WithError(err).Error("failed to update render surface")
		c.synchronizer.Forget()
		if r, ok := c.surface.(resettableSurface); ok {
			r.Reset(ctx)
		}
		c.setStatus(ctx, "Error: display update failed", true)
		return err
	}

	if message != "" {
		logger.Debug(message)
		c.setStatus(ctx, message, false)
	}
	return nil
}

func (c *Coordinator) dispatch(ctx context.Context, cmd Command) (string, error) {
	switch cmd := cmd.(type) {
	case LoadFile:
		return c.loadFile(ctx, cmd)
	case GenerateFunction:
		return c.generate(cmd)
	case EditDataset:
		return c.edit(cmd)
	case DeriveDataset:
		return c.derive(cmd)
	case RemoveDataset:
		return c.remove(cmd.ID)
	case SelectIndex:
		id, err := c.store.IDAt(cmd.Index)
		if err != nil {
			return "", err
		}
		c.selected = id
		return "", nil
	case ToggleIndex:
		return c.toggle(cmd.Index)
	case AutoscaleAxes:
		c.pendingAutoscale = true
		return "", nil
	case ExportPlot:
		if err := exportPlot(c.createOutput, c.store, c.config.PlotOptions, cmd.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Exported plot to %s", cmd.Path), nil
	case SaveDataset:
		d, err := c.store.Lookup(cmd.ID)
		if err != nil {
			return "", err
		}
		if err := saveSeries(c.createOutput, d.Series, cmd.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("Saved %s to %s", d.Name, cmd.Path), nil
	case AddSampleData:
		return c.addSampleData()
	}

	return "", fmt.Errorf("unsupported command %T", cmd)
}

func (c *Coordinator) loadFile(ctx context.Context, cmd LoadFile) (string, error) {
	seeds, err := c.importer.Import(ctx, cmd.Path)
	if err != nil {
		return "", err
	}

	for _, seed := range seeds {
		c.insert(DatasetFromSeed(seed))
	}

	if len(seeds) == 1 {
		return fmt.Sprintf("Loaded %d points from %s", seeds[0].Series.Len(), seeds[0].Name), nil
	}
	return fmt.Sprintf("Loaded %d datasets of %d points from %s", len(seeds), seeds[0].Series.Len(), cmd.Path), nil
}

func (c *Coordinator) generate(cmd GenerateFunction) (string, error) {
	if err := cmd.Domain.ValidateLimit(c.maxPoints()); err != nil {
		return "", err
	}

	series, err := Evaluate(cmd.Expression, cmd.Domain)
	if err != nil {
		return "", err
	}

	name := cmd.Name
	if name == "" {
		name = "f(x) = " + cmd.Expression
	}

	c.insert(NewDataset(name, series, Generated{Expression: cmd.Expression, Domain: cmd.Domain}))

	message := fmt.Sprintf("Generated function: %s", cmd.Expression)
	if skipped := cmd.Domain.NPoints - series.Len(); skipped > 0 {
		message += fmt.Sprintf(" (%d undefined points skipped)", skipped)
	}
	return message, nil
}

func (c *Coordinator) edit(cmd EditDataset) (string, error) {
	if err := c.editor.Apply(cmd.ID, cmd.Op); err != nil {
		return "", err
	}

	d := c.mustGet(cmd.ID)
	if _, ok := cmd.Op.(Rename); ok && c.store.NameTaken(d.Name, d.ID) {
		c.logger.WithField("name", d.Name).Warn("duplicate dataset name")
		return fmt.Sprintf("Renamed to %q (another dataset has the same name)", d.Name), nil
	}

	return fmt.Sprintf("%s: %s", d.Name, cmd.Op.Describe()), nil
}

func (c *Coordinator) derive(cmd DeriveDataset) (string, error) {
	id, err := c.editor.Derive(cmd.ID, cmd.Op)
	if err != nil {
		return "", err
	}

	d := c.mustGet(id)
	if f, ok := cmd.Op.(fitter); ok {
		// Same input as the derive above, so the fit succeeds again.
		if _, result, err := f.Fit(c.mustGet(cmd.ID).Series); err == nil {
			return fmt.Sprintf("Added %s: %s", d.Name, result), nil
		}
	}
	return fmt.Sprintf("Added %s", d.Name), nil
}

func (c *Coordinator) remove(id DatasetID) (string, error) {
	d, err := c.store.Lookup(id)
	if err != nil {
		return "", err
	}

	if err := c.store.Remove(id); err != nil {
		return "", err
	}

	if c.selected == id {
		c.selected = 0
	}
	return fmt.Sprintf("Deleted %s", d.Name), nil
}

func (c *Coordinator) toggle(index int) (string, error) {
	id, err := c.store.IDAt(index)
	if err != nil {
		return "", err
	}

	// IDAt just returned this id, so the edit cannot miss.
	if err := c.editor.Apply(id, ToggleVisibility{}); err != nil {
		panic(fmt.Sprintf("toggle of %s failed: %v", id, err))
	}
	c.selected = id

	d := c.mustGet(id)
	if d.Visible {
		return fmt.Sprintf("Showing %s", d.Name), nil
	}
	return fmt.Sprintf("Hiding %s", d.Name), nil
}

func (c *Coordinator) addSampleData() (string, error) {
	domain := Domain{XMin: 0, XMax: 10, NPoints: 50}
	for _, expression := range []string{"sin(x)", "cos(x)"} {
		series, err := Evaluate(expression, domain)
		if err != nil {
			return "", err
		}
		c.insert(NewDataset(expression, series, Generated{Expression: expression, Domain: domain}))
	}

	c.pendingAutoscale = true
	return "Added sample data", nil
}

func (c *Coordinator) insert(d Dataset) DatasetID {
	if c.store.NameTaken(d.Name, 0) {
		c.logger.WithField("name", d.Name).Warn("duplicate dataset name")
	}
	return c.store.Insert(d)
}

func (c *Coordinator) mustGet(id DatasetID) Dataset {
	d, ok := c.store.Get(id)
	if !ok {
		panic(fmt.Sprintf("dataset %s vanished during a command", id))
	}
	return d
}

func (c *Coordinator) maxPoints() int {
	if c.config.MaxPoints > 0 {
		return c.config.MaxPoints
	}
	return DefaultMaxPoints
}

// Creates name inside the output directory. Absolute names, names with ".."
// and symlinks that leave the directory are all refused.
func (c *Coordinator) createOutput(name string) (*os.File, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %q", ErrOutputPath, name)
	}

	dir := c.config.OutputDir
	if dir == "" {
		dir = "."
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	return root.Create(name)
}

func (c *Coordinator) autoscale(ctx context.Context) error {
	bounds := Autoscale(c.store).Padded(c.config.PlotOptions.Padding)
	if c.surface == nil {
		return nil
	}
	return c.surface.SetAxisLimits(ctx, bounds)
}

func (c *Coordinator) sync(ctx context.Context) error {
	delta := c.synchronizer.Reconcile(c.store)

	if c.surface != nil {
		if err := Apply(ctx, delta, c.surface); err != nil {
			return err
		}
		if c.pendingAutoscale || (c.config.AutoscaleOnChange && !delta.Empty()) {
			if err := c.autoscale(ctx); err != nil {
				return err
			}
		}
	}
	c.pendingAutoscale = false

	if c.selection != nil {
		entries := make([]SelectionEntry, 0, c.store.Len())
		for d := range c.store.All() {
			entries = append(entries, SelectionEntry{
				ID:       d.ID,
				Label:    d.Name,
				Checked:  d.Visible,
				Selected: d.ID == c.selected,
			})
		}
		if err := c.selection.Refresh(ctx, entries); err != nil {
			return err
		}
	}

	return nil
}

func (c *Coordinator) setStatus(ctx context.Context, message string, isError bool) {
	if c.status == nil {
		return
	}
	if err := c.status.SetStatus(ctx, message, isError); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WithError(err).Warn("failed to set status")
	}
}
