// CLAUDE:SUMMARY Delimited-text parser: clamped read buffer, header handling, per-cell type inference, optional row batching.
package docparse

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/docparse/value"
)

// CSVOptions configures a CSVParser.
type CSVOptions struct {
	// HasHeaders treats the first record as column names. When false,
	// names column_1..column_N are synthesised from the first record's width.
	HasHeaders bool

	// Delimiter separates fields. 0 means ','.
	Delimiter byte

	// Strict rejects records whose field count differs from the first
	// record. When false, short rows omit trailing columns and long rows
	// drop their excess fields.
	Strict bool

	// BatchSize groups rows into arrays of at most this many rows.
	// 0 disables batching.
	BatchSize int

	Logger *slog.Logger

	// delimiterErr holds a configured delimiter that ParseDelimiter
	// rejected. Parse reports it instead of falling back to ','.
	delimiterErr error
}

// DefaultCSVOptions returns headers on, comma-delimited, lenient, unbatched.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{HasHeaders: true, Delimiter: ','}
}

// CSVParser turns delimited text into an array of row objects.
type CSVParser struct {
	opts CSVOptions
}

// NewCSVParser creates a parser; zero Delimiter and nil Logger get defaults.
func NewCSVParser(opts CSVOptions) *CSVParser {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.BatchSize < 0 {
		opts.BatchSize = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &CSVParser{opts: opts}
}

// Format implements Parser.
func (p *CSVParser) Format() Format { return FormatCSV }

// Validate reports whether path is a regular file with a .csv extension.
func (p *CSVParser) Validate(path string) bool {
	return isFileWithExt(path, FormatCSV)
}

// Parse reads the whole file and returns one object per data record.
func (p *CSVParser) Parse(path string) (*Document, error) {
	name, err := fileName(path)
	if err != nil {
		return nil, err
	}
	if !p.Validate(path) {
		return nil, newError(KindValidationFailed, errors.New("not a regular .csv file"))
	}
	if p.opts.delimiterErr != nil {
		return nil, newError(KindStructuralParse, p.opts.delimiterErr)
	}
	if !validDelimiter(p.opts.Delimiter) {
		return nil, newError(KindStructuralParse, fmt.Errorf("invalid delimiter %q", p.opts.Delimiter))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(KindIO, fmt.Errorf("metadata: %w", err))
	}
	bufSize := readBufferSize(info.Size())

	// A leading BOM is consumed; UTF-16 input with a BOM is decoded to UTF-8.
	src := transform.NewReader(bufio.NewReaderSize(f, bufSize), unicode.BOMOverride(transform.Nop))

	r := csv.NewReader(src)
	r.Comma = rune(p.opts.Delimiter)
	r.ReuseRecord = true
	if p.opts.Strict {
		r.FieldsPerRecord = 0
	} else {
		r.FieldsPerRecord = -1
	}

	rows, err := p.readRows(r)
	if err != nil {
		return nil, err
	}

	p.opts.Logger.Debug("csv parsed",
		"file", name, "bytes", info.Size(), "buffer", bufSize, "rows", len(rows))

	if p.opts.BatchSize > 0 {
		return NewParsedData(value.Array(batch(rows, p.opts.BatchSize)...), name, ShapeRowBatches), nil
	}
	return NewParsedData(value.Array(rows...), name, ShapeRows), nil
}

func (p *CSVParser) readRows(r *csv.Reader) ([]value.Value, error) {
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []value.Value{}, nil
	}
	if err != nil {
		return nil, csvError(err)
	}

	var headers []string
	var pending []string
	if p.opts.HasHeaders {
		headers = append([]string(nil), first...)
	} else {
		headers = make([]string, len(first))
		for i := range headers {
			headers[i] = "column_" + strconv.Itoa(i+1)
		}
		// The first record is data: it is emitted before reading on.
		pending = first
	}

	rows := []value.Value{}
	if pending != nil {
		rows = append(rows, rowObject(headers, pending))
	}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, csvError(err)
		}
		rows = append(rows, rowObject(headers, rec))
	}
}

// rowObject zips headers with fields positionally; whichever side is
// longer is truncated. Duplicate headers keep the last value.
func rowObject(headers, fields []string) value.Value {
	n := min(len(headers), len(fields))
	obj := value.NewObject(n)
	for i := 0; i < n; i++ {
		obj.Set(headers[i], Infer(fields[i]))
	}
	return value.ObjectOf(obj)
}

func validDelimiter(d byte) bool {
	return d != '"' && d != '\r' && d != '\n' && d < utf8.RuneSelf
}

// csvError separates syntax errors from failures of the underlying reader.
func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return newError(KindStructuralParse, err)
	}
	return newError(KindIO, err)
}
