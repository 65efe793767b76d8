package mapping

import (
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

// Mapped is a row after column mapping: canonical field name to raw string.
type Mapped struct {
	Line   int
	Values map[Field]string

	// Sources records which column supplied each field.
	Sources map[Field]string
}

// Apply resolves each field of tmpl against row. For every field the first alias
// whose column exists with a non-blank value is used. A required field with no
// populated alias rejects the row with MissingField.
func Apply(row parser.RawRow, tmpl *Template) (*Mapped, *parser.RowError) {
	m := &Mapped{
		Line:    row.Line,
		Values:  make(map[Field]string, len(AllFields)),
		Sources: make(map[Field]string, len(AllFields)),
	}

	for _, field := range AllFields {
		for _, alias := range tmpl.Columns[field] {
			v, ok := row.Lookup(alias)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			m.Values[field] = v
			m.Sources[field] = alias
			break
		}
	}

	for _, field := range RequiredFields {
		if _, ok := m.Values[field]; !ok {
			return nil, parser.MissingField(row.Line, string(field))
		}
	}

	return m, nil
}
