// CLAUDE:SUMMARY Paginated document parser using pdfcpu: optional decryption, blank-page skipping, gap-free numbering, batching.
// CLAUDE:DEPENDS docparse/pdfstream.go
package docparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/docparse/value"
)

// PDFOptions configures a PDFParser.
type PDFOptions struct {
	// ExtractMetadata is reserved; it does not change the output yet.
	ExtractMetadata bool

	// Password opens encrypted documents. Empty means none.
	Password string

	// BatchSize groups pages into arrays of at most this many pages.
	// 0 disables batching.
	BatchSize int

	Logger *slog.Logger
}

// DefaultPDFOptions returns metadata on, no password, unbatched.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{ExtractMetadata: true}
}

// pageExtractor returns the raw text of every page in document order.
type pageExtractor func(data []byte, password string) ([]string, error)

// PDFParser turns a PDF into an array of {page_number, content} objects.
type PDFParser struct {
	opts    PDFOptions
	extract pageExtractor
}

// NewPDFParser creates a parser backed by pdfcpu.
func NewPDFParser(opts PDFOptions) *PDFParser {
	if opts.BatchSize < 0 {
		opts.BatchSize = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	p := &PDFParser{opts: opts}
	p.extract = p.extractPages
	return p
}

// Format implements Parser.
func (p *PDFParser) Format() Format { return FormatPDF }

// Validate reports whether path is a regular file with a .pdf extension.
func (p *PDFParser) Validate(path string) bool {
	return isFileWithExt(path, FormatPDF)
}

// Parse loads the whole document into memory and extracts its pages.
func (p *PDFParser) Parse(path string) (*Document, error) {
	name, err := fileName(path)
	if err != nil {
		return nil, err
	}
	if !p.Validate(path) {
		return nil, newError(KindValidationFailed, errors.New("not a regular .pdf file"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindIO, err)
	}

	raw, err := p.extract(data, p.opts.Password)
	if err != nil {
		return nil, err
	}

	pages := pageObjects(raw)
	p.opts.Logger.Debug("pdf parsed",
		"file", name, "bytes", len(data), "pages", len(raw), "kept", len(pages),
		"encrypted_path", p.opts.Password != "")

	if p.opts.BatchSize > 0 {
		return NewParsedData(value.Array(batch(pages, p.opts.BatchSize)...), name, ShapePageBatches), nil
	}
	return NewParsedData(value.Array(pages...), name, ShapePages), nil
}

// pageObjects trims every page, drops the blank ones and numbers the rest
// 1..n without gaps.
func pageObjects(raw []string) []value.Value {
	pages := make([]value.Value, 0, len(raw))
	for _, text := range raw {
		content := strings.TrimSpace(text)
		if content == "" {
			continue
		}
		obj := value.NewObject(2)
		obj.Set("page_number", value.Int(int64(len(pages)+1)))
		obj.Set("content", value.String(content))
		pages = append(pages, value.ObjectOf(obj))
	}
	return pages
}

// extractPages decodes the document with pdfcpu. A non-empty password is
// tried as both user and owner password.
func (p *PDFParser) extractPages(data []byte, password string) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, decodeError(fmt.Errorf("pdfcpu read: %w", err))
	}

	pages := make([]string, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text, err := pageText(ctx, pageNr)
		if err != nil {
			return nil, decodeError(fmt.Errorf("page %d: %w", pageNr, err))
		}
		pages[pageNr-1] = text
	}
	return pages, nil
}

func pageText(ctx *model.Context, pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", err
	}
	if r == nil {
		// No content stream: the page renders blank.
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return streamText(data), nil
}
