package cactusplot

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Import pipeline: an io.Reader (the file) goes through a HeaderFilter that
// drops the header region, then a StringReader splits each remaining line
// into fields, then TextToDataRowReader turns fields into DataRows. The
// Importer collects DataRows into series.

// RaggedRowError is returned when a data row has a different number of
// columns than the first data row.
type RaggedRowError struct {
	Line     int
	Expected int
	Got      int
}

func (e *RaggedRowError) Error() string {
	return fmt.Sprintf("line %d: expected %d columns, got %d", e.Line, e.Expected, e.Got)
}

// FieldParseError is returned when a field is not a finite number. Line and
// Column are 1-based.
type FieldParseError struct {
	Line   int
	Column int
	Value  string
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %q is not a finite number", e.Line, e.Column, e.Value)
}

// HeaderFilter reads lines and drops everything that is not data: the first
// SkipLines lines, lines starting with one of CommentPrefixes (after leading
// whitespace), and blank lines.
type HeaderFilter struct {
	scanner *bufio.Scanner

	skipLines       int
	commentPrefixes []string

	lineCount int
}

func NewHeaderFilter(input io.Reader, skipLines int, commentPrefixes []string) *HeaderFilter {
	return &HeaderFilter{
		scanner:         bufio.NewScanner(input),
		skipLines:       skipLines,
		commentPrefixes: commentPrefixes,
	}
}

// Returns the next data line and its 1-based line number in the input.
func (f *HeaderFilter) Next() (string, int, error) {
	for f.scanner.Scan() {
		f.lineCount++
		line := strings.TrimSuffix(f.scanner.Text(), "\r")

		if f.lineCount <= f.skipLines {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || f.isComment(trimmed) {
			continue
		}

		return line, f.lineCount, nil
	}

	if err := f.scanner.Err(); err != nil {
		logrus.WithField("tag", "HeaderFilter").WithError(err).Error("unable to read line")
		return "", f.lineCount, err
	}

	return "", f.lineCount, io.EOF
}

func (f *HeaderFilter) isComment(line string) bool {
	for _, prefix := range f.commentPrefixes {
		if prefix != "" && strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// The fields of one data line.
type TextRow struct {
	Line   int
	Fields []string
}

// When Read is called, return the next line split into fields.
type StringReader interface {
	Read(context.Context) (TextRow, error)
}

// This implements a StringReader with the Golang csv module. Each line must
// strictly conform to CSV. If the data is separated by spaces, use the
// RelaxedStringReader.
type CsvStringReader struct {
	input *HeaderFilter
}

func NewCsvStringReader(input *HeaderFilter) *CsvStringReader {
	return &CsvStringReader{input: input}
}

func (r *CsvStringReader) Read(ctx context.Context) (TextRow, error) {
	if err := ctx.Err(); err != nil {
		return TextRow{}, err
	}

	line, lineNum, err := r.input.Next()
	if err != nil {
		return TextRow{}, err
	}

	// Lines are parsed one at a time so the header filter stays in charge of
	// line numbering. Numeric data never needs multi-line quoted fields.
	csvReader := csv.NewReader(strings.NewReader(line))
	csvReader.FieldsPerRecord = -1
	fields, err := csvReader.Read()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"tag":     "CsvString",
			"line":    line,
			"lineNum": lineNum,
		}).WithError(err).Debug("unable to parse CSV")
		return TextRow{}, &FieldParseError{Line: lineNum, Column: 1, Value: line}
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return TextRow{Line: lineNum, Fields: fields}, nil
}

// This is a more relaxed reader that can split on spaces or commas. However,
// it does not follow strict CSV formatting. This is the default.
type RelaxedStringReader struct {
	input *HeaderFilter
}

func NewRelaxedStringReader(input *HeaderFilter) *RelaxedStringReader {
	return &RelaxedStringReader{input: input}
}

// Split on either comma or any number of spaces or tabs
var relaxedSplitter = regexp.MustCompile("[ \t]+|,")

func (r *RelaxedStringReader) Read(ctx context.Context) (TextRow, error) {
	if err := ctx.Err(); err != nil {
		return TextRow{}, err
	}

	line, lineNum, err := r.input.Next()
	if err != nil {
		return TextRow{}, err
	}

	// Return only non-empty fields
	fields := Filter(relaxedSplitter.Split(line, -1), func(value string) bool {
		return len(value) > 0
	})

	return TextRow{Line: lineNum, Fields: fields}, nil
}

// One parsed data line. Ys holds every column except the x column.
type DataRow struct {
	Line int
	X    float64
	Ys   []float64
}

// Turns text rows into DataRows. Unlike a live stream, an imported file is
// all-or-nothing: the first malformed field or ragged row is returned as an
// error instead of being skipped.
type TextToDataRowReader struct {
	Input StringReader

	// The x column index. If this is <0, X is the 0-based index of the data
	// row and every column goes into Ys.
	XIndex int

	columnCount int
	rowCount    int
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	row, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	if r.columnCount == 0 {
		r.columnCount = len(row.Fields)
	} else if len(row.Fields) != r.columnCount {
		return DataRow{}, &RaggedRowError{Line: row.Line, Expected: r.columnCount, Got: len(row.Fields)}
	}

	dataRow := DataRow{Line: row.Line, Ys: make([]float64, 0, len(row.Fields))}

	for i, value := range row.Fields {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil || !isFinite(floatValue) {
			return DataRow{}, &FieldParseError{Line: row.Line, Column: i + 1, Value: value}
		}

		if i == r.XIndex {
			dataRow.X = floatValue
			continue
		}

		dataRow.Ys = append(dataRow.Ys, floatValue)
	}

	if r.XIndex < 0 {
		dataRow.X = float64(r.rowCount)
	}
	r.rowCount++

	return dataRow, nil
}

// The number of columns established by the first data row, 0 before any row
// has been read.
func (r *TextToDataRowReader) ColumnCount() int {
	return r.columnCount
}
