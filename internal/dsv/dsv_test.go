package dsv

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, in string) ([][]string, []error) {
	t.Helper()
	r := NewReader(strings.NewReader(in))
	var (
		records [][]string
		soft    []error
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, soft
		}
		var pe *ParseError
		if errors.As(err, &pe) {
			soft = append(soft, err)
			continue
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestReaderSplitsRecords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{"simple", "a;b;c\n1;2;3\n", [][]string{{"a", "b", "c"}, {"1", "2", "3"}}},
		{"no trailing newline", "a;b", [][]string{{"a", "b"}}},
		{"crlf", "a;b\r\nc;d\r\n", [][]string{{"a", "b"}, {"c", "d"}}},
		{"lone cr", "a;b\rc;d", [][]string{{"a", "b"}, {"c", "d"}}},
		{"empty line", "a\n\nb\n", [][]string{{"a"}, {}, {"b"}}},
		{"empty fields", ";\n;;x\n", [][]string{{"", ""}, {"", "", "x"}}},
		{"trailing delimiter", "a;\n", [][]string{{"a", ""}}},
		{"quotes are literal", `"a;b";"c"` + "\n", [][]string{{`"a`, `b"`, `"c"`}}},
		{"escaped delimiter", `a\;b;c` + "\n", [][]string{{"a;b", "c"}}},
		{"escaped escape", `a\\;b` + "\n", [][]string{{`a\`, "b"}}},
		{"escaped newline", "a\\\nb;c\n", [][]string{{"a\nb", "c"}}},
		{"escaped crlf", "a\\\r\nb\n", [][]string{{"a\nb"}}},
		{"escaped letter", `\x;y`, [][]string{{"x", "y"}}},
		{"unicode", "Zürich;Ω\n", [][]string{{"Zürich", "Ω"}}},
		{"empty input", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, soft := readAll(t, tt.in)
			assert.Empty(t, soft)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReaderDanglingEscapeIsSoft(t *testing.T) {
	got, soft := readAll(t, "a;b\nc;d\\")
	assert.Equal(t, [][]string{{"a", "b"}}, got)
	require.Len(t, soft, 1)
	assert.True(t, errors.Is(soft[0], ErrDanglingEscape))

	var pe *ParseError
	require.True(t, errors.As(soft[0], &pe))
	assert.Equal(t, 2, pe.Line)
}

func TestReaderTracksLines(t *testing.T) {
	r := NewReader(strings.NewReader("a\nb\\\nc\nd\n"))
	assert.Equal(t, 1, r.Line())
	_, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Line())
	_, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, 4, r.Line())
}

func TestWriterEscapes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write([]string{"a;b", `c\d`, `say "hi"`, "line\nbreak", ""}))
	require.NoError(t, w.Write([]string{"plain", "Zürich"}))
	require.NoError(t, w.Flush())

	want := `a\;b;c\\d;say \"hi\";line\` + "\nbreak;\r\nplain;Zürich\r\n"
	assert.Equal(t, want, buf.String())
}

func TestWriterOutputReadsBack(t *testing.T) {
	records := [][]string{
		{"1", "semi;colon", `back\slash`},
		{"2", "multi\r\nline", `"quoted"`},
		{"3", "", "end"},
	}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())

	got, soft := readAll(t, buf.String())
	assert.Empty(t, soft)
	// escaped "\r" followed by escaped "\n" reads back as two line breaks
	records[1][1] = "multi\n\nline"
	assert.Equal(t, records, got)
}
