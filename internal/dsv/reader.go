// Package dsv reads and writes delimiter-separated records that use an escape
// character instead of quoting: the delimiter, the escape character and line
// breaks are literal when preceded by the escape. Quote characters carry no
// meaning on read.
package dsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultComma  = ';'
	DefaultEscape = '\\'
)

// ErrDanglingEscape is reported when the input ends right after an escape
// character.
var ErrDanglingEscape = errors.New("input ends with an escape character")

// ParseError locates a malformed record.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("record on line %d: %v", e.Line, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Reader reads records from UTF-8 text. "\r\n" and a lone "\r" both end a
// line. An empty line is a record with no fields.
type Reader struct {
	Comma  rune
	Escape rune

	r    *bufio.Reader
	line int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		Comma:  DefaultComma,
		Escape: DefaultEscape,
		r:      bufio.NewReaderSize(r, 64*1024),
		line:   1,
	}
}

// Line returns the line the next record starts on.
func (r *Reader) Line() int { return r.line }

// Read returns the next record, or io.EOF once the input is exhausted.
// A *ParseError is soft: the following call continues with the next
// record. Any other error comes from the underlying reader.
func (r *Reader) Read() ([]string, error) {
	var (
		fields  []string
		field   strings.Builder
		started bool
		escaped bool
		start   = r.line
	)

	for {
		c, _, err := r.r.ReadRune()
		if err == io.EOF {
			switch {
			case escaped:
				// Not read as an escaped line break: the whole record is dropped.
				return nil, &ParseError{Line: start, Err: ErrDanglingEscape}
			case !started:
				return nil, io.EOF
			}
			return append(fields, field.String()), nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}
		started = true

		if c == '\r' {
			if next, _, err := r.r.ReadRune(); err == nil && next != '\n' {
				if uerr := r.r.UnreadRune(); uerr != nil {
					return nil, errors.Wrap(uerr, "read record")
				}
			}
			c = '\n'
		}
		if c == '\n' {
			r.line++
		}

		switch {
		case escaped:
			field.WriteRune(c)
			escaped = false
		case c == r.Escape:
			escaped = true
		case c == r.Comma:
			fields = append(fields, field.String())
			field.Reset()
		case c == '\n':
			if fields == nil && field.Len() == 0 {
				return []string{}, nil
			}
			return append(fields, field.String()), nil
		default:
			field.WriteRune(c)
		}
	}
}
