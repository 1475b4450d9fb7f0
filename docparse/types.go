// CLAUDE:SUMMARY Format, Shape, ParsedData envelope and the Parser contract shared by all format parsers.
package docparse

import (
	"encoding/json"

	"github.com/hazyhaar/docparse/value"
)

// Format identifies a supported input type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Shape tags the layout of a payload so consumers never sniff it.
type Shape string

const (
	ShapeRows        Shape = "rows"         // [row, row, ...]
	ShapeRowBatches  Shape = "row_batches"  // [[row, ...], [row, ...]]
	ShapePages       Shape = "pages"        // [page, page, ...]
	ShapePageBatches Shape = "page_batches" // [[page, ...], [page, ...]]
)

// Format returns the input format that produces s.
func (s Shape) Format() Format {
	switch s {
	case ShapeRows, ShapeRowBatches:
		return FormatCSV
	case ShapePages, ShapePageBatches:
		return FormatPDF
	}
	return ""
}

// Batched reports whether the payload is an array of batches.
func (s Shape) Batched() bool {
	return s == ShapeRowBatches || s == ShapePageBatches
}

// ParsedData pairs an extracted payload with the base name of its source file.
// It is immutable once built.
type ParsedData[T any] struct {
	payload  T
	fileName string
	shape    Shape
}

// NewParsedData builds an envelope.
func NewParsedData[T any](payload T, fileName string, shape Shape) *ParsedData[T] {
	return &ParsedData[T]{payload: payload, fileName: fileName, shape: shape}
}

// Payload returns the extracted data.
func (d *ParsedData[T]) Payload() T { return d.payload }

// FileName returns the base name of the parsed file.
func (d *ParsedData[T]) FileName() string { return d.fileName }

// Shape returns the payload layout tag.
func (d *ParsedData[T]) Shape() Shape { return d.shape }

// MarshalJSON encodes {file_name, format, shape, payload}.
func (d *ParsedData[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FileName string `json:"file_name"`
		Format   Format `json:"format"`
		Shape    Shape  `json:"shape"`
		Payload  T      `json:"payload"`
	}{d.fileName, d.shape.Format(), d.shape, d.payload})
}

// Document is the envelope every parser returns.
type Document = ParsedData[value.Value]

// Parser is the capability contract implemented by each format parser.
//
// Validate is metadata-only: it never opens the file. Parse must only be
// called on a path Validate accepts; implementations re-check anyway.
type Parser interface {
	Format() Format
	Validate(path string) bool
	Parse(path string) (*Document, error)
}
