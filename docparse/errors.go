package docparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindInvalidPath       ErrorKind = "invalid_path"
	KindNotFound          ErrorKind = "not_found"
	KindNotAFile          ErrorKind = "not_a_file"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindValidationFailed  ErrorKind = "validation_failed"
	KindIO                ErrorKind = "io"
	KindStructuralParse   ErrorKind = "structural_parse"
	KindFormatDecode      ErrorKind = "format_decode"
	KindTooLarge          ErrorKind = "too_large"
)

var kindText = map[ErrorKind]string{
	KindInvalidPath:       "invalid file path",
	KindNotFound:          "file not found",
	KindNotAFile:          "not a file",
	KindUnsupportedFormat: "unsupported file type",
	KindValidationFailed:  "validation failed",
	KindIO:                "io error",
	KindStructuralParse:   "csv parsing error",
	KindFormatDecode:      "pdf parsing error",
	KindTooLarge:          "file too large",
}

// ErrWrongPassword marks decode failures caused by a missing or incorrect
// document password. The error kind stays KindFormatDecode.
var ErrWrongPassword = errors.New("wrong or missing password")

// Error is the single error type produced by parsers and the Pipeline.
// Parsers leave Path empty; the Pipeline is the only layer that adds it.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(kindText[e.Kind])
	if e.Path != "" {
		fmt.Fprintf(&sb, " %q", e.Path)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the error kind as a string.
func (e *Error) Code() string { return string(e.Kind) }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// passwordFailures are the pdfcpu messages for a missing or rejected password.
var passwordFailures = []string{
	"correct password",
	"owner password",
}

// decodeError wraps a PDF backend failure, flagging password problems.
// Other encryption errors (unsupported handler, corrupt /Encrypt) stay
// plain decode failures.
func decodeError(cause error) *Error {
	if errors.Is(cause, pdfcpu.ErrWrongPassword) {
		return newError(KindFormatDecode, fmt.Errorf("%w: %v", ErrWrongPassword, cause))
	}
	msg := strings.ToLower(cause.Error())
	for _, m := range passwordFailures {
		if strings.Contains(msg, m) {
			return newError(KindFormatDecode, fmt.Errorf("%w: %v", ErrWrongPassword, cause))
		}
	}
	return newError(KindFormatDecode, cause)
}
