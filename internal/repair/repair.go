// Package repair coerces the cells of a raw row to the declared types of a
// schema. Coercion never fails: a cell that cannot be read as its declared
// type becomes null.
package repair

import (
	"github.com/stanstork/stratum-loader/internal/schema"
)

// Cell is one repaired value. A cell with Valid == false is null.
type Cell struct {
	Text  string
	Valid bool
}

func Value(s string) Cell { return Cell{Text: s, Valid: true} }

func Null() Cell { return Cell{} }

// Row is a repaired row with the same arity as the schema it was repaired
// against.
type Row []Cell

// Strings returns the row as text, with null cells rendered empty.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		if c.Valid {
			out[i] = c.Text
		}
	}
	return out
}

// rule tries to read a cell. ok == false means the cell becomes null.
type rule func(text string) (repaired string, ok bool)

var rules = map[string]rule{
	schema.TypeInteger:   parseInteger,
	schema.TypeFloat:     parseFloat,
	schema.TypeTimestamp: parseTimestamp,
}

// Repair coerces every cell of row against the matching schema column.
// Rows whose arity differs from the schema are not repairable; callers drop
// them before calling, and Repair returns nil for them.
func Repair(row []string, s *schema.Schema) Row {
	if s == nil || len(row) != len(s.Fields) {
		return nil
	}
	out := make(Row, len(row))
	for i, text := range row {
		apply, ok := rules[s.Fields[i].Kind()]
		if !ok {
			out[i] = Value(text)
			continue
		}
		if v, ok := apply(text); ok {
			out[i] = Value(v)
		} else {
			out[i] = Null()
		}
	}
	return out
}
