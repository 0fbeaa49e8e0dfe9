package cactusplot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	exportWidth  = 8 * vg.Inch
	exportHeight = 5 * vg.Inch
)

// Opens a file for writing. os.Create, or a variant confined to one
// directory.
type createFunc func(name string) (*os.File, error)

// ExportPlotFile writes the visible datasets to path. The format follows
// the extension: .png, .svg, .pdf and .eps are drawn with gonum/plot, .html
// is an interactive echarts page.
func ExportPlotFile(store *DatasetStore, options PlotOptions, path string) error {
	return exportPlot(os.Create, store, options, path)
}

func exportPlot(create createFunc, store *DatasetStore, options PlotOptions, path string) error {
	logger := logrus.WithFields(logrus.Fields{"tag": "Export", "path": path})

	// Checked before anything is created so that a bad name leaves no file.
	format, err := PlotFormat(path)
	if err != nil {
		return err
	}

	f, err := create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := WritePlot(f, store, options, format); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}

	logger.Info("exported plot")
	return nil
}

// PlotFormat maps a file name to the format WritePlot expects.
func PlotFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg", ".pdf", ".eps":
		return ext[1:], nil
	case ".html", ".htm":
		return "html", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func WritePlot(w io.Writer, store *DatasetStore, options PlotOptions, format string) error {
	switch format {
	case "png", "svg", "pdf", "eps":
		return writeImage(w, store, options, format)
	case "html":
		return writeHTML(w, store, options)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func plotLimits(store *DatasetStore, options PlotOptions) Bounds {
	return Autoscale(store).Padded(options.Padding)
}

func writeImage(w io.Writer, store *DatasetStore, options PlotOptions, format string) error {
	p := plot.New()
	p.Title.Text = options.Title
	p.X.Label.Text = options.XLabel
	p.Y.Label.Text = options.YLabel

	limits := plotLimits(store, options)
	p.X.Min, p.X.Max = limits.XMin, limits.XMax
	p.Y.Min, p.Y.Max = limits.YMin, limits.YMax

	for d := range store.All() {
		if !d.Visible || d.Series.IsEmpty() {
			continue
		}

		pts := make(plotter.XYs, 0, d.Series.Len())
		for _, pt := range d.Series.Points() {
			pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
		}

		if d.LineStyle == LineMarkersOnly {
			scatter, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			scatter.GlyphStyle.Color = d.Color
			scatter.GlyphStyle.Radius = vg.Points(2)
			p.Add(scatter)
			p.Legend.Add(d.Name, scatter)
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		line.Color = d.Color
		line.Width = vg.Points(1)
		switch d.LineStyle {
		case LineDashed:
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		case LineDotted:
			line.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(d.Name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	writer, err := p.WriterTo(exportWidth, exportHeight, format)
	if err != nil {
		return err
	}
	_, err = writer.WriteTo(w)
	return err
}

func writeHTML(w io.Writer, store *DatasetStore, options PlotOptions) error {
	limits := plotLimits(store, options)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: options.Title, Width: "900px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: options.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: options.XLabel, Min: limits.XMin, Max: limits.XMax, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: options.YLabel, Min: limits.YMin, Max: limits.YMax, NameLocation: "middle", NameGap: 30}),
	)

	for d := range store.All() {
		if !d.Visible || d.Series.IsEmpty() {
			continue
		}
		color := HexColor(d.Color)

		if d.LineStyle == LineMarkersOnly {
			data := make([]opts.ScatterData, 0, d.Series.Len())
			for _, pt := range d.Series.Points() {
				data = append(data, opts.ScatterData{Value: []interface{}{pt.X, pt.Y}})
			}
			scatter := charts.NewScatter()
			scatter.AddSeries(d.Name, data,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			)
			line.Overlap(scatter)
			continue
		}

		data := make([]opts.LineData, 0, d.Series.Len())
		for _, pt := range d.Series.Points() {
			data = append(data, opts.LineData{Value: []interface{}{pt.X, pt.Y}})
		}
		line.AddSeries(d.Name, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: color, Type: echartsLineType(d.LineStyle)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}

	return line.Render(w)
}

func echartsLineType(style LineStyle) string {
	switch style {
	case LineDashed:
		return "dashed"
	case LineDotted:
		return "dotted"
	}
	return "solid"
}

// SaveSeriesFile writes the series as tab separated x/y rows. The result
// can be loaded again with the default import settings.
func SaveSeriesFile(series Series, path string) error {
	return saveSeries(os.Create, series, path)
}

func saveSeries(create createFunc, series Series, path string) error {
	f, err := create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	if err := WriteSeries(f, series); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return f.Close()
}

func WriteSeries(w io.Writer, series Series) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	for _, pt := range series.Points() {
		record := []string{
			strconv.FormatFloat(pt.X, 'g', -1, 64),
			strconv.FormatFloat(pt.Y, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
