// Package mapping applies named column templates to raw statement rows.
package mapping

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

// Field is a canonical transaction field a column can be mapped to.
type Field string

const (
	FieldDate     Field = "date"
	FieldMerchant Field = "merchant"
	FieldAmount   Field = "amount"
	FieldAccount  Field = "account"
)

// RequiredFields must resolve to a populated column for a row to be accepted.
var RequiredFields = []Field{FieldDate, FieldMerchant, FieldAmount}

// AllFields lists every mappable field in canonical order.
var AllFields = []Field{FieldDate, FieldMerchant, FieldAmount, FieldAccount}

// DefaultTemplateName is used when an upload names no template.
const DefaultTemplateName = "default"

var ErrInvalidTemplate = errors.New("invalid mapping template")

// Template maps canonical fields to ordered lists of accepted source column names.
type Template struct {
	Name        string             `yaml:"name" json:"name"`
	FileKind    parser.FileKind    `yaml:"file_kind,omitempty" json:"file_kind,omitempty"`
	Fingerprint string             `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
	Columns     map[Field][]string `yaml:"columns" json:"columns"`

	// Negate lists source columns whose amounts flip sign, e.g. a positive "Debit" column.
	Negate []string `yaml:"negate,omitempty" json:"negate,omitempty"`

	// DateFormats overrides the default date layouts, tried in order.
	DateFormats []string `yaml:"date_formats,omitempty" json:"date_formats,omitempty"`

	// DecimalSeparator is "." (default) or ",".
	DecimalSeparator string `yaml:"decimal_separator,omitempty" json:"decimal_separator,omitempty"`

	// DefaultAccount overrides the service-wide fallback account label.
	DefaultAccount string `yaml:"default_account,omitempty" json:"default_account,omitempty"`
}

// DefaultTemplate is the alias table used when no template is named.
func DefaultTemplate() *Template {
	return &Template{
		Name:     DefaultTemplateName,
		FileKind: parser.FileKindDelimited,
		Columns: map[Field][]string{
			FieldDate:     {"Date"},
			FieldMerchant: {"Merchant", "Description"},
			FieldAmount:   {"Amount", "Debit"},
			FieldAccount:  {"Account"},
		},
	}
}

// Validate checks that every required field has at least one alias.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	for _, f := range RequiredFields {
		if len(t.Columns[f]) == 0 {
			return fmt.Errorf("%w: %s: no columns for %s", ErrInvalidTemplate, t.Name, f)
		}
	}
	for f := range t.Columns {
		if !slices.Contains(AllFields, f) {
			return fmt.Errorf("%w: %s: unknown field %q", ErrInvalidTemplate, t.Name, f)
		}
	}
	switch t.DecimalSeparator {
	case "", ".", ",":
	default:
		return fmt.Errorf("%w: %s: decimal separator %q", ErrInvalidTemplate, t.Name, t.DecimalSeparator)
	}
	return nil
}

// Separator returns the decimal separator as a rune.
func (t *Template) Separator() rune {
	if t.DecimalSeparator == "," {
		return ','
	}
	return '.'
}

// Negates reports whether amounts read from column must flip sign.
func (t *Template) Negates(column string) bool {
	for _, c := range t.Negate {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(column)) {
			return true
		}
	}
	return false
}
