package schema

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	doc := []byte(`
fields:
  - name: id
    type: INTEGER
    mode: REQUIRED
  - name: amount
    type: float
  - name: created_at
    type: TIMESTAMP
    mode: NULLABLE
  - name: label
    type: STRING
`)
	s, err := Parse(doc, FormatYAML)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	assert.Equal(t, Column{Name: "id", Type: TypeInteger, Mode: ModeRequired}, s.Fields[0])
	assert.Equal(t, TypeFloat, s.Fields[1].Type)
	assert.Equal(t, ModeNullable, s.Fields[1].Mode, "mode defaults to NULLABLE")
	assert.True(t, s.Fields[0].Required())
	assert.False(t, s.Fields[3].Required())
}

func TestParseJSON(t *testing.T) {
	doc := []byte(`{"fields": [
		{"name": "n", "type": "INT64", "mode": "NULLABLE"},
		{"name": "payload", "type": "RECORD", "mode": "REPEATED"}
	]}`)
	s, err := Parse(doc, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	assert.Equal(t, TypeInteger, s.Fields[0].Kind(), "INT64 repairs as INTEGER")
	assert.Equal(t, "RECORD", s.Fields[1].Kind(), "unknown types load untouched")
	assert.Equal(t, ModeRepeated, s.Fields[1].Mode)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
	}{
		{"yaml garbage", "fields: [a, b", FormatYAML},
		{"yaml without fields", "columns:\n  - name: a\n", FormatYAML},
		{"json array", `[{"name":"a","type":"STRING"}]`, FormatJSON},
		{"json syntax", `{"fields": [`, FormatJSON},
		{"empty fields", `{"fields": []}`, FormatJSON},
		{"missing type", `{"fields": [{"name": "a"}]}`, FormatJSON},
		{"missing name", "fields:\n  - type: STRING\n", FormatYAML},
		{"unknown format", `{"fields": [{"name":"a","type":"STRING"}]}`, Format(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestFormatFromName(t *testing.T) {
	f, err := FormatFromName("schemas/sales.yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFromName("sales.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFromName("sales.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFromName("sales.xml")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
