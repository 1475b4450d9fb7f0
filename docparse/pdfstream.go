// CLAUDE:SUMMARY Content-stream text scanner: tokenises PDF page operators and collects shown strings.
package docparse

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// tjSpaceThreshold is the TJ displacement (thousandths of text space)
// beyond which a gap is rendered as a word break.
const tjSpaceThreshold = -200

type operand struct {
	str   []byte
	num   float64
	isStr bool
	isNum bool
	array []operand
}

// streamText extracts the text shown by a page content stream. It handles
// Tj, TJ, ' and " with literal and hex strings; positioning operators
// become whitespace. Glyph encodings beyond single-byte and UTF-16 are
// not resolved.
func streamText(data []byte) string {
	s := &scanner{data: data}
	var out textBuilder
	var stack []operand

	for {
		tok, op, ok := s.next()
		if !ok {
			break
		}
		if op == "" {
			stack = append(stack, tok)
			continue
		}
		switch op {
		case "Tj":
			if n := len(stack); n > 0 && stack[n-1].isStr {
				out.text(stack[n-1].str)
			}
		case "'":
			out.newline()
			if n := len(stack); n > 0 && stack[n-1].isStr {
				out.text(stack[n-1].str)
			}
		case "\"":
			out.newline()
			if n := len(stack); n > 0 && stack[n-1].isStr {
				out.text(stack[n-1].str)
			}
		case "TJ":
			if n := len(stack); n > 0 {
				for _, el := range stack[n-1].array {
					switch {
					case el.isStr:
						out.text(el.str)
					case el.isNum && el.num <= tjSpaceThreshold:
						out.space()
					}
				}
			}
		case "Td", "TD", "Tm":
			out.space()
		case "T*", "ET":
			out.newline()
		case "ID":
			s.skipInlineImage()
		}
		stack = stack[:0]
	}
	return out.String()
}

// textBuilder accumulates decoded text while collapsing separators.
type textBuilder struct {
	sb strings.Builder
}

func (b *textBuilder) text(raw []byte) {
	b.sb.WriteString(decodePDFText(raw))
}

func (b *textBuilder) space() {
	if b.sb.Len() == 0 {
		return
	}
	s := b.sb.String()
	if last := s[len(s)-1]; last != ' ' && last != '\n' {
		b.sb.WriteByte(' ')
	}
}

func (b *textBuilder) newline() {
	if b.sb.Len() == 0 {
		return
	}
	s := b.sb.String()
	if s[len(s)-1] == ' ' {
		trimmed := strings.TrimRight(s, " ")
		b.sb.Reset()
		b.sb.WriteString(trimmed)
		s = trimmed
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		b.sb.WriteByte('\n')
	}
}

func (b *textBuilder) String() string { return b.sb.String() }

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// decodePDFText maps string operand bytes to UTF-8: UTF-16BE when a BOM is
// present, UTF-8 when already valid, Windows-1252 otherwise.
func decodePDFText(raw []byte) string {
	if bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		if out, err := utf16BE.NewDecoder().Bytes(raw); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(bytes.ToValidUTF8(raw, nil))
	}
	return string(out)
}

type scanner struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// next returns either an operand (op == "") or an operator name.
func (s *scanner) next() (operand, string, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isPDFSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return operand{str: s.literal(), isStr: true}, "", true
		case c == '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				s.pos += 2
				continue
			}
			return operand{str: s.hex(), isStr: true}, "", true
		case c == '>':
			s.pos++
		case c == '[':
			s.pos++
			return operand{array: s.array()}, "", true
		case c == ']' || c == '{' || c == '}' || c == ')':
			s.pos++
		case c == '/':
			s.pos++
			s.word()
			return operand{}, "", true
		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			w := s.word()
			f, err := strconv.ParseFloat(w, 64)
			if err != nil {
				return operand{}, "", true
			}
			return operand{num: f, isNum: true}, "", true
		case c == '\'' || c == '"':
			s.pos++
			return operand{}, string(c), true
		default:
			return operand{}, s.word(), true
		}
	}
	return operand{}, "", false
}

func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isPDFSpace(s.data[s.pos]) && !isPDFDelim(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// array reads operands up to the matching ']'.
func (s *scanner) array() []operand {
	var items []operand
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isPDFSpace(c) {
			s.pos++
			continue
		}
		if c == ']' {
			s.pos++
			return items
		}
		tok, op, ok := s.next()
		if !ok {
			break
		}
		if op != "" {
			continue
		}
		items = append(items, tok)
	}
	return items
}

// literal reads a (string) with balanced parentheses and escapes.
func (s *scanner) literal() []byte {
	s.pos++ // (
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <hex string>; an odd final digit is padded with 0.
func (s *scanner) hex() []byte {
	s.pos++ // <
	var out []byte
	var hi byte
	half := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			continue
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

// skipInlineImage jumps past binary inline image data up to "EI".
func (s *scanner) skipInlineImage() {
	for s.pos+2 <= len(s.data) {
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' &&
			(s.pos == 0 || isPDFSpace(s.data[s.pos-1])) &&
			(s.pos+2 == len(s.data) || isPDFSpace(s.data[s.pos+2])) {
			s.pos += 2
			return
		}
		s.pos++
	}
	s.pos = len(s.data)
}
