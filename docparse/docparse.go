// CLAUDE:SUMMARY Dispatcher: picks the parser by extension, validates, parses, adds path context to errors.
// Package docparse extracts structured, type-inferred data from files.
//
// Supported formats:
//   - .csv: delimited text → array of row objects, one per record
//   - .pdf: paginated document → array of {page_number, content} objects
//
// Every parser returns the same value.Value representation wrapped in a
// ParsedData envelope. Parsing is synchronous and holds no shared state, so
// distinct files may be parsed from concurrent goroutines.
//
// Usage:
//
//	pipe := docparse.New(docparse.Config{})
//	payload, err := pipe.ParseFile(ctx, "/path/to/report.csv")
package docparse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/docparse/kit"
	"github.com/hazyhaar/docparse/value"
)

// Pipeline is the dispatcher over the closed set of format parsers.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	mws    []func(op string) kit.Middleware
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		cfg.Logger.Warn("docparse: invalid config, affected parses will fail", "error", err)
	}
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Use adds per-operation middleware to the transport endpoints. It must be
// called before RegisterHTTP, RegisterMCP or RegisterConnectivity.
func (p *Pipeline) Use(mws ...func(op string) kit.Middleware) {
	p.mws = append(p.mws, mws...)
}

// WithPassword returns a Pipeline that opens encrypted PDFs with pw.
// An empty pw returns p unchanged.
func (p *Pipeline) WithPassword(pw string) *Pipeline {
	if pw == "" {
		return p
	}
	cp := *p
	cp.cfg.PDF.Password = pw
	return &cp
}

// Detect returns the format for path based on its extension alone.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := extension(path)
	switch Format(ext) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	if ext == "" {
		return "", &Error{Kind: KindUnsupportedFormat, Path: path, Err: errors.New("missing file extension")}
	}
	return "", &Error{Kind: KindUnsupportedFormat, Path: path, Err: fmt.Errorf("extension %q", "."+ext)}
}

// ParserFor returns the configured parser for format.
func (p *Pipeline) ParserFor(format Format) (Parser, error) {
	switch format {
	case FormatCSV:
		return NewCSVParser(p.cfg.CSVOptions()), nil
	case FormatPDF:
		return NewPDFParser(p.cfg.PDFOptions()), nil
	}
	return nil, &Error{Kind: KindUnsupportedFormat, Err: fmt.Errorf("no parser for format %q", format)}
}

// Parse checks path, selects its parser and returns the full envelope.
// ctx is only consulted before work starts; the parse itself runs to
// completion on the calling goroutine.
func (p *Pipeline) Parse(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, &Error{Kind: KindNotFound, Path: path}
	case err != nil:
		return nil, &Error{Kind: KindIO, Path: path, Err: err}
	case !info.Mode().IsRegular():
		return nil, &Error{Kind: KindNotAFile, Path: path}
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, err
	}
	// PDFs are read whole into memory; CSV streams and has no cap.
	if format == FormatPDF && info.Size() > p.cfg.MaxFileSize {
		return nil, &Error{Kind: KindTooLarge, Path: path,
			Err: fmt.Errorf("%d bytes (max %d)", info.Size(), p.cfg.MaxFileSize)}
	}
	parser, err := p.ParserFor(format)
	if err != nil {
		return nil, err
	}
	if !parser.Validate(path) {
		return nil, &Error{Kind: KindValidationFailed, Path: path,
			Err: fmt.Errorf("rejected by %s parser", format)}
	}

	p.logger.DebugContext(ctx, "parsing file", "path", path, "format", format)

	doc, err := parser.Parse(path)
	if err != nil {
		p.logger.WarnContext(ctx, "parse failed", "path", path, "format", format, "error", err)
		return nil, fmt.Errorf("parse %s (%s): %w", path, format, err)
	}
	return doc, nil
}

// ParseFile returns only the payload; the caller already knows the path.
func (p *Pipeline) ParseFile(ctx context.Context, path string) (value.Value, error) {
	doc, err := p.Parse(ctx, path)
	if err != nil {
		return value.Value{}, err
	}
	return doc.Payload(), nil
}

// parseAsync runs Parse on its own goroutine so a caller-side deadline can
// return early. The abandoned parse finishes in the background.
func (p *Pipeline) parseAsync(ctx context.Context, path string) (*Document, error) {
	type result struct {
		doc *Document
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := p.Parse(ctx, path)
		done <- result{doc, err}
	}()
	select {
	case r := <-done:
		return r.doc, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{string(FormatCSV), string(FormatPDF)}
}
