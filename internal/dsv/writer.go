package dsv

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Writer writes records with the same convention Reader reads. Records end
// with "\r\n".
type Writer struct {
	Comma  rune
	Escape rune

	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		Comma:  DefaultComma,
		Escape: DefaultEscape,
		w:      bufio.NewWriterSize(w, 64*1024),
	}
}

func (w *Writer) needsEscape(c rune) bool {
	return c == w.Comma || c == w.Escape || c == '"' || c == '\r' || c == '\n'
}

// Write writes one record. Output is buffered; call Flush when done.
func (w *Writer) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if _, err := w.w.WriteRune(w.Comma); err != nil {
				return errors.Wrap(err, "write record")
			}
		}
		for _, c := range field {
			if w.needsEscape(c) {
				if _, err := w.w.WriteRune(w.Escape); err != nil {
					return errors.Wrap(err, "write record")
				}
			}
			if _, err := w.w.WriteRune(c); err != nil {
				return errors.Wrap(err, "write record")
			}
		}
	}
	if _, err := w.w.WriteString("\r\n"); err != nil {
		return errors.Wrap(err, "write record")
	}
	return nil
}

func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "flush records")
}
