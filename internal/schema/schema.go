// Package schema loads the column definitions a delimited file is repaired
// and loaded against. A schema document is either YAML or JSON and holds a
// "fields" list of {name, type, mode} entries.
package schema

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for documents that do not describe a schema.
var ErrInvalid = errors.New("invalid schema")

// ErrUnsupportedFormat is returned by FormatFromName for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported schema format")

type Format int

const (
	FormatYAML Format = iota + 1
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// FormatFromName picks the document format from an object name.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedFormat, "%q (.json or .yaml needed)", name)
}

// Declared column types the repair engine knows about. Anything else is
// carried through as text.
const (
	TypeInteger   = "INTEGER"
	TypeFloat     = "FLOAT"
	TypeTimestamp = "TIMESTAMP"
	TypeString    = "STRING"
)

const (
	ModeNullable = "NULLABLE"
	ModeRequired = "REQUIRED"
	ModeRepeated = "REPEATED"
)

var typeAliases = map[string]string{
	"INT64":   TypeInteger,
	"FLOAT64": TypeFloat,
}

type Column struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Kind returns the canonical repair type of the column.
func (c Column) Kind() string {
	if alias, ok := typeAliases[c.Type]; ok {
		return alias
	}
	return c.Type
}

func (c Column) Required() bool { return c.Mode == ModeRequired }

// Schema is an ordered list of columns; position i pairs with field i of a
// row.
type Schema struct {
	Fields []Column `json:"fields" yaml:"fields"`
}

func (s *Schema) Len() int { return len(s.Fields) }

// Parse decodes a schema document.
func Parse(data []byte, format Format) (*Schema, error) {
	var doc struct {
		Fields []Column `json:"fields" yaml:"fields"`
	}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "decode yaml: %v", err)
		}
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errors.Wrap(ErrInvalid, "json schema must be an object")
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, errors.Wrapf(ErrInvalid, "decode json: %v", err)
		}
	default:
		return nil, errors.Wrapf(ErrInvalid, "format %s", format)
	}

	if len(doc.Fields) == 0 {
		return nil, errors.Wrap(ErrInvalid, "no fields")
	}

	s := &Schema{Fields: make([]Column, 0, len(doc.Fields))}
	for i, f := range doc.Fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Type = strings.ToUpper(strings.TrimSpace(f.Type))
		f.Mode = strings.ToUpper(strings.TrimSpace(f.Mode))
		if f.Name == "" || f.Type == "" {
			return nil, errors.Wrapf(ErrInvalid, "field %d needs a name and a type", i)
		}
		if f.Mode == "" {
			f.Mode = ModeNullable
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}
