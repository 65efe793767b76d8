package mapping

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// fieldHints are the words a header is fuzzily compared against, per field.
var fieldHints = map[Field][]string{
	FieldDate:     {"date", "booking date", "posted", "fecha", "data mov"},
	FieldMerchant: {"merchant", "description", "payee", "descrição", "descripcion", "memo"},
	FieldAmount:   {"amount", "debit", "value", "importe", "montante", "valor"},
	FieldAccount:  {"account", "card", "conta", "iban"},
}

// Suggestion proposes a source column for a canonical field.
type Suggestion struct {
	Field    Field  `json:"field"`
	Column   string `json:"column"`
	Distance int    `json:"distance"` // lower is a closer match
}

// Suggest ranks headers against known field names and returns at most one
// column per field. A column is never suggested for two fields.
func Suggest(headers []string) []Suggestion {
	type candidate struct {
		field    Field
		index    int
		distance int
	}

	var candidates []candidate
	for _, field := range AllFields {
		for _, hint := range fieldHints[field] {
			for _, rank := range fuzzy.RankFindNormalizedFold(hint, headers) {
				candidates = append(candidates, candidate{field: field, index: rank.OriginalIndex, distance: rank.Distance})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	usedField := make(map[Field]bool)
	usedColumn := make(map[int]bool)
	picked := make(map[Field]Suggestion)
	for _, c := range candidates {
		if usedField[c.field] || usedColumn[c.index] {
			continue
		}
		usedField[c.field] = true
		usedColumn[c.index] = true
		picked[c.field] = Suggestion{Field: c.field, Column: headers[c.index], Distance: c.distance}
	}

	out := make([]Suggestion, 0, len(picked))
	for _, field := range AllFields {
		if s, ok := picked[field]; ok {
			out = append(out, s)
		}
	}
	return out
}
