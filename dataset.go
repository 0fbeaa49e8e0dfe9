package cactusplot

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strings"
)

// Opaque, never reused within a process.
type DatasetID uint64

func (id DatasetID) String() string {
	return fmt.Sprintf("ds%d", uint64(id))
}

type LineStyle int

const (
	LineSolid LineStyle = iota
	LineDashed
	LineDotted
	LineMarkersOnly
)

var lineStyleNames = []string{"solid", "dashed", "dotted", "markers"}

func (s LineStyle) String() string {
	if int(s) < 0 || int(s) >= len(lineStyleNames) {
		return fmt.Sprintf("LineStyle(%d)", int(s))
	}
	return lineStyleNames[s]
}

func ParseLineStyle(name string) (LineStyle, error) {
	for i, n := range lineStyleNames {
		if strings.EqualFold(n, name) {
			return LineStyle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown line style %q", name)
}

func (s LineStyle) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *LineStyle) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseLineStyle(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Provenance records how a dataset's data was produced. It is one of
// Imported, Generated or Derived.
type Provenance interface {
	provenance()
	Describe() string
}

type Imported struct {
	Path   string
	Column int
}

type Generated struct {
	Expression string
	Domain     Domain
}

type Derived struct {
	ParentID  DatasetID
	Operation string
}

func (Imported) provenance()  {}
func (Generated) provenance() {}
func (Derived) provenance()   {}

func (p Imported) Describe() string {
	return fmt.Sprintf("imported from %s (column %d)", p.Path, p.Column)
}

func (p Generated) Describe() string {
	return fmt.Sprintf("f(x) = %s on [%g, %g], %d points", p.Expression, p.Domain.XMin, p.Domain.XMax, p.Domain.NPoints)
}

func (p Derived) Describe() string {
	return fmt.Sprintf("%s of %s", p.Operation, p.ParentID)
}

// Presentation attributes sent to the render surface.
type Style struct {
	Label     string     `json:"label"`
	Color     color.RGBA `json:"color"`
	LineStyle LineStyle  `json:"line_style"`
	Visible   bool       `json:"visible"`
}

// Dataset is a named, styled series plus where it came from.
//
// DataRevision and StyleRevision are bumped by the store whenever the series
// or the presentation changes. The synchronizer compares them against what it
// last rendered to decide what to redraw.
type Dataset struct {
	ID         DatasetID
	Name       string
	Series     Series
	Visible    bool
	Color      color.RGBA
	LineStyle  LineStyle
	Provenance Provenance

	DataRevision  uint64
	StyleRevision uint64
}

// Creates a visible dataset with a solid line. Color is left at zero; the
// store assigns a palette color on insert when it is unset.
func NewDataset(name string, series Series, provenance Provenance) Dataset {
	return Dataset{
		Name:       name,
		Series:     series,
		Visible:    true,
		LineStyle:  LineSolid,
		Provenance: provenance,
	}
}

func DatasetFromSeed(seed DatasetSeed) Dataset {
	return NewDataset(seed.Name, seed.Series, Imported{Path: seed.Path, Column: seed.Column})
}

func (d Dataset) Style() Style {
	return Style{
		Label:     d.Name,
		Color:     d.Color,
		LineStyle: d.LineStyle,
		Visible:   d.Visible,
	}
}

// Line colors handed out in insertion order.
var DefaultPalette = []color.RGBA{
	{R: 31, G: 120, B: 180, A: 255},  // blue
	{R: 255, G: 127, B: 14, A: 255},  // orange
	{R: 44, G: 160, B: 44, A: 255},   // green
	{R: 214, G: 39, B: 40, A: 255},   // red
	{R: 148, G: 103, B: 189, A: 255}, // purple
	{R: 140, G: 86, B: 75, A: 255},   // brown
	{R: 227, G: 119, B: 194, A: 255}, // pink
	{R: 127, G: 127, B: 127, A: 255}, // gray
}

func PaletteColor(index int) color.RGBA {
	return DefaultPalette[index%len(DefaultPalette)]
}

// Parses "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 255}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("unexpected length %d", len(s))
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// Formats as "#rrggbb", or "#rrggbbaa" when not opaque.
func HexColor(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
