package cactusplot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound      = errors.New("file not found")
	ErrUnreadable    = errors.New("file is not readable")
	ErrNoNumericData = errors.New("no numeric data")
)

type ImportFormat string

const (
	// Whitespace and/or comma separated columns.
	FormatRelaxed ImportFormat = "relaxed"
	// Strict CSV.
	FormatCSV ImportFormat = "csv"
)

// How header regions are recognized. Different toolchains write different
// headers, so none of this is hard-coded: SkipLines drops a fixed number of
// leading lines, CommentPrefixes drops any line starting with one of the
// prefixes. Both can be used at the same time.
type ImportConfig struct {
	SkipLines       int          `json:"skip_lines"`
	CommentPrefixes []string     `json:"comment_prefixes"`
	Format          ImportFormat `json:"format"`
}

// Comment markers of xmgrace/GROMACS .xvg files and most shell tools.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SkipLines:       0,
		CommentPrefixes: []string{"#", "@"},
		Format:          FormatRelaxed,
	}
}

// A parsed column, ready to become a Dataset.
type DatasetSeed struct {
	Name   string
	Path   string
	Column int // 1-based column of the y values in the source file
	Series Series
}

type Importer struct {
	config ImportConfig
	logger logrus.FieldLogger
}

func NewImporter(config ImportConfig) *Importer {
	if config.Format == "" {
		config.Format = FormatRelaxed
	}

	return &Importer{
		config: config,
		logger: logrus.WithField("tag", "Importer"),
	}
}

// Import reads a whitespace-delimited numeric file. The first column is x and
// every other column becomes its own seed sharing that x column. A file with
// a single column is plotted against the row index.
func (im *Importer) Import(ctx context.Context, path string) ([]DatasetSeed, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	seeds, err := im.ImportReader(ctx, f, path)
	if err != nil {
		return nil, err
	}

	im.logger.WithFields(logrus.Fields{
		"path":    path,
		"columns": len(seeds),
		"rows":    seeds[0].Series.Len(),
	}).Info("imported file")

	return seeds, nil
}

// ImportReader is Import for an arbitrary reader. path is only used for
// naming the seeds.
func (im *Importer) ImportReader(ctx context.Context, input io.Reader, path string) ([]DatasetSeed, error) {
	filter := NewHeaderFilter(input, im.config.SkipLines, im.config.CommentPrefixes)

	var stringReader StringReader
	switch im.config.Format {
	case FormatCSV:
		stringReader = NewCsvStringReader(filter)
	case FormatRelaxed:
		stringReader = NewRelaxedStringReader(filter)
	default:
		return nil, fmt.Errorf("unknown import format %q", im.config.Format)
	}

	rowReader := &TextToDataRowReader{Input: stringReader, XIndex: 0}

	var rows []DataRow
	for {
		row, err := rowReader.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			var ragged *RaggedRowError
			var field *FieldParseError
			if errors.As(err, &ragged) || errors.As(err, &field) || errors.Is(err, ctx.Err()) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNumericData, path)
	}

	if rowReader.ColumnCount() == 1 {
		return im.seedsAgainstIndex(rows, path)
	}

	return im.seedsFromColumns(rows, path)
}

func (im *Importer) seedsFromColumns(rows []DataRow, path string) ([]DatasetSeed, error) {
	xs := make([]float64, len(rows))
	for i, row := range rows {
		xs[i] = row.X
	}

	yColumns := len(rows[0].Ys)
	seeds := make([]DatasetSeed, 0, yColumns)
	base := filepath.Base(path)

	for c := 0; c < yColumns; c++ {
		ys := make([]float64, len(rows))
		for i, row := range rows {
			ys[i] = row.Ys[c]
		}

		series, err := NewSeries(xs, ys)
		if err != nil {
			return nil, err
		}

		name := base
		if yColumns > 1 {
			name = fmt.Sprintf("%s [%d]", base, c+2)
		}

		seeds = append(seeds, DatasetSeed{Name: name, Path: path, Column: c + 2, Series: series})
	}

	return seeds, nil
}

func (im *Importer) seedsAgainstIndex(rows []DataRow, path string) ([]DatasetSeed, error) {
	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, row := range rows {
		xs[i] = float64(i)
		ys[i] = row.X
	}

	series, err := NewSeries(xs, ys)
	if err != nil {
		return nil, err
	}

	im.logger.WithField("path", path).Debug("single column file, plotting against row index")

	return []DatasetSeed{{Name: filepath.Base(path), Path: path, Column: 1, Series: series}}, nil
}
