package cactusplot

import (
	"encoding/json"
	"fmt"
)

// Command is a user action produced by the UI layer. The coordinator is the
// only consumer and the only place where the store is mutated.
type Command interface {
	commandName() string
}

type LoadFile struct{ Path string }

// Name may be empty, in which case "f(x) = <expression>" is used.
type GenerateFunction struct {
	Expression string
	Domain     Domain
	Name       string
}

type EditDataset struct {
	ID DatasetID
	Op Operation
}

type DeriveDataset struct {
	ID DatasetID
	Op SeriesOperation
}

type RemoveDataset struct{ ID DatasetID }

// Selection list events carry the row index, not the id.
type SelectIndex struct{ Index int }
type ToggleIndex struct{ Index int }

type AutoscaleAxes struct{}

// Writes the visible datasets to an image or HTML file.
type ExportPlot struct{ Path string }

// Writes one dataset as tab separated x/y text.
type SaveDataset struct {
	ID   DatasetID
	Path string
}

// Adds sin(x) and cos(x) on [0, 10].
type AddSampleData struct{}

func (LoadFile) commandName() string         { return "load_file" }
func (GenerateFunction) commandName() string { return "generate" }
func (EditDataset) commandName() string      { return "edit" }
func (DeriveDataset) commandName() string    { return "derive" }
func (RemoveDataset) commandName() string    { return "remove" }
func (SelectIndex) commandName() string      { return "select" }
func (ToggleIndex) commandName() string      { return "toggle" }
func (AutoscaleAxes) commandName() string    { return "autoscale" }
func (ExportPlot) commandName() string       { return "export" }
func (SaveDataset) commandName() string      { return "save" }
func (AddSampleData) commandName() string    { return "sample" }

// A command plus an optional channel that receives its result.
type CommandRequest struct {
	Command Command
	Result  chan<- error
}

// Wire form of a command, as posted to /command:
//
//	{"type": "generate", "expression": "sin(x)", "domain": {"x_min": 0, "x_max": 10, "n_points": 100}}
//	{"type": "edit", "id": 3, "op": {"kind": "rescale", "factor": 2}}
//	{"type": "toggle", "index": 0}
type commandEnvelope struct {
	Type       string      `json:"type"`
	Path       string      `json:"path,omitempty"`
	Expression string      `json:"expression,omitempty"`
	Domain     *Domain     `json:"domain,omitempty"`
	Name       string      `json:"name,omitempty"`
	ID         DatasetID   `json:"id,omitempty"`
	Index      *int        `json:"index,omitempty"`
	Op         *opEnvelope `json:"op,omitempty"`
}

type opEnvelope struct {
	Kind   string     `json:"kind"`
	Factor *float64   `json:"factor,omitempty"`
	Delta  *float64   `json:"delta,omitempty"`
	XMin   *float64   `json:"x_min,omitempty"`
	XMax   *float64   `json:"x_max,omitempty"`
	Window *int       `json:"window,omitempty"`
	Color  string     `json:"color,omitempty"`
	Name   string     `json:"name,omitempty"`
	Style  *LineStyle `json:"style,omitempty"`
}

// DecodeCommand parses the JSON wire form of a command.
func DecodeCommand(data []byte) (Command, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	switch env.Type {
	case "load_file":
		if env.Path == "" {
			return nil, fmt.Errorf("load_file: missing path")
		}
		return LoadFile{Path: env.Path}, nil
	case "generate":
		if env.Domain == nil {
			return nil, fmt.Errorf("generate: missing domain")
		}
		return GenerateFunction{Expression: env.Expression, Domain: *env.Domain, Name: env.Name}, nil
	case "edit":
		op, err := decodeOperation(env.Op)
		if err != nil {
			return nil, fmt.Errorf("edit: %w", err)
		}
		return EditDataset{ID: env.ID, Op: op}, nil
	case "derive":
		op, err := decodeOperation(env.Op)
		if err != nil {
			return nil, fmt.Errorf("derive: %w", err)
		}
		seriesOp, ok := op.(SeriesOperation)
		if !ok {
			return nil, fmt.Errorf("derive: %q does not change data", env.Op.Kind)
		}
		return DeriveDataset{ID: env.ID, Op: seriesOp}, nil
	case "remove":
		return RemoveDataset{ID: env.ID}, nil
	case "select", "toggle":
		if env.Index == nil {
			return nil, fmt.Errorf("%s: missing index", env.Type)
		}
		if env.Type == "select" {
			return SelectIndex{Index: *env.Index}, nil
		}
		return ToggleIndex{Index: *env.Index}, nil
	case "autoscale":
		return AutoscaleAxes{}, nil
	case "export":
		if env.Path == "" {
			return nil, fmt.Errorf("export: missing path")
		}
		return ExportPlot{Path: env.Path}, nil
	case "save":
		if env.Path == "" {
			return nil, fmt.Errorf("save: missing path")
		}
		return SaveDataset{ID: env.ID, Path: env.Path}, nil
	case "sample":
		return AddSampleData{}, nil
	}

	return nil, fmt.Errorf("unknown command type %q", env.Type)
}

func decodeOperation(env *opEnvelope) (Operation, error) {
	if env == nil {
		return nil, fmt.Errorf("missing op")
	}

	missing := func(field string) error {
		return fmt.Errorf("%s: missing %s", env.Kind, field)
	}

	switch env.Kind {
	case "rescale":
		if env.Factor == nil {
			return nil, missing("factor")
		}
		return Rescale{Factor: *env.Factor}, nil
	case "offset":
		if env.Delta == nil {
			return nil, missing("delta")
		}
		return Offset{Delta: *env.Delta}, nil
	case "restrict":
		if env.XMin == nil || env.XMax == nil {
			return nil, missing("x_min/x_max")
		}
		return Restrict{XMin: *env.XMin, XMax: *env.XMax}, nil
	case "derivative":
		return Derivative{}, nil
	case "rolling_average":
		if env.Window == nil {
			return nil, missing("window")
		}
		return RollingAverage{Window: *env.Window}, nil
	case "linear_fit":
		return LinearFit{}, nil
	case "sigmoid_fit":
		return SigmoidFit{}, nil
	case "hill_fit":
		return HillFit{}, nil
	case "recolor":
		c, err := ParseHexColor(env.Color)
		if err != nil {
			return nil, err
		}
		return Recolor{Color: c}, nil
	case "rename":
		return Rename{Name: env.Name}, nil
	case "toggle_visibility":
		return ToggleVisibility{}, nil
	case "line_style":
		if env.Style == nil {
			return nil, missing("style")
		}
		return SetLineStyle{Style: *env.Style}, nil
	}

	return nil, fmt.Errorf("unknown op kind %q", env.Kind)
}
