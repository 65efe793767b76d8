// Package normalizer converts mapped raw fields into canonical transactions.
package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/mapping"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// DefaultAccount labels rows that carry no account column.
const DefaultAccount = "Default"

// Normalizer holds the service-wide fallbacks applied to every row.
type Normalizer struct {
	defaultAccount string
	currency       string
}

// New creates a normalizer. Empty arguments fall back to DefaultAccount and USD.
func New(defaultAccount, currency string) *Normalizer {
	if strings.TrimSpace(defaultAccount) == "" {
		defaultAccount = DefaultAccount
	}
	if currency == "" {
		currency = money.USD
	}
	return &Normalizer{defaultAccount: CleanText(defaultAccount), currency: strings.ToUpper(currency)}
}

// Normalize turns a mapped row into a transaction with no cost center and
// status ReviewRequired. Identity and import IDs are set by the caller.
func (n *Normalizer) Normalize(m *mapping.Mapped, tmpl *mapping.Template) (*repository.Transaction, *parser.RowError) {
	rawDate := m.Values[mapping.FieldDate]
	date, err := ParseDate(rawDate, tmpl.DateFormats)
	if err != nil {
		return nil, parser.InvalidDate(m.Line, rawDate)
	}

	rawAmount := m.Values[mapping.FieldAmount]
	amount, err := ParseAmount(rawAmount, tmpl.Separator())
	if err != nil {
		return nil, parser.InvalidAmount(m.Line, rawAmount)
	}
	if tmpl.Negates(m.Sources[mapping.FieldAmount]) {
		amount = amount.Neg()
	}

	merchant := CleanText(m.Values[mapping.FieldMerchant])
	if merchant == "" {
		return nil, parser.MissingField(m.Line, string(mapping.FieldMerchant))
	}

	account := CleanText(m.Values[mapping.FieldAccount])
	if account == "" {
		account = n.accountFor(tmpl)
	}

	tx := &repository.Transaction{
		Date:       date,
		Merchant:   merchant,
		Amount:     amount,
		Currency:   n.currency,
		Account:    account,
		SourceLine: m.Line,
	}
	tx.SetCostCenter("")
	return tx, nil
}

func (n *Normalizer) accountFor(tmpl *mapping.Template) string {
	if a := CleanText(tmpl.DefaultAccount); a != "" {
		return a
	}
	return n.defaultAccount
}

// ParseAmount parses a signed decimal amount. See money.ParseDecimal for the accepted forms.
func ParseAmount(raw string, decimalSeparator rune) (decimal.Decimal, error) {
	return money.ParseDecimal(raw, decimalSeparator)
}

// CleanText trims s and collapses internal whitespace runs to a single space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
