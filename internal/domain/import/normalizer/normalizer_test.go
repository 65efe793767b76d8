package normalizer

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/mapping"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
)

func mapped(line int, date, merchant, amount, account string) *mapping.Mapped {
	m := &mapping.Mapped{
		Line: line,
		Values: map[mapping.Field]string{
			mapping.FieldDate:     date,
			mapping.FieldMerchant: merchant,
			mapping.FieldAmount:   amount,
		},
		Sources: map[mapping.Field]string{
			mapping.FieldDate:     "Date",
			mapping.FieldMerchant: "Merchant",
			mapping.FieldAmount:   "Amount",
		},
	}
	if account != "" {
		m.Values[mapping.FieldAccount] = account
		m.Sources[mapping.FieldAccount] = "Account"
	}
	return m
}

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 1, Day: 5}

	tests := []struct {
		name    string
		raw     string
		layouts []string
		want    civil.Date
		wantErr bool
	}{
		{name: "iso", raw: "2024-01-05", want: want},
		{name: "us month first", raw: "01/05/2024", want: want},
		{name: "us without padding", raw: "1/5/2024", want: want},
		{name: "german", raw: "05.01.2024", want: want},
		{name: "month name", raw: "Jan 5, 2024", want: want},
		{name: "timestamp drops time", raw: "2024-01-05T23:59:59Z", want: want},
		{name: "surrounding whitespace", raw: "  2024-01-05 ", want: want},
		{name: "custom day first", raw: "05/01/2024", layouts: []string{"02/01/2006"}, want: want},
		{name: "custom layouts replace defaults", raw: "2024-01-05", layouts: []string{"02/01/2006"}, wantErr: true},
		{name: "garbage", raw: "yesterday", wantErr: true},
		{name: "impossible date", raw: "2024-02-30", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.raw, tt.layouts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	n := New("", "")
	tmpl := mapping.DefaultTemplate()

	t.Run("canonical row", func(t *testing.T) {
		tx, rowErr := n.Normalize(mapped(2, "2024-01-05", "  Coffee   Shop ", "-4.50", "Visa 1234"), tmpl)
		require.Nil(t, rowErr)

		assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 5}, tx.Date)
		assert.Equal(t, "Coffee Shop", tx.Merchant)
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("-4.50")))
		assert.Equal(t, "Visa 1234", tx.Account)
		assert.Equal(t, "USD", tx.Currency)
		assert.Equal(t, 2, tx.SourceLine)
		assert.Empty(t, tx.CostCenter)
		assert.Equal(t, repository.StatusReviewRequired, tx.Status)
		assert.Empty(t, tx.IdentityHash)
	})

	t.Run("equivalent dates normalize identically", func(t *testing.T) {
		a, rowErr := n.Normalize(mapped(2, "01/05/2024", "Coffee Shop", "-4.50", ""), tmpl)
		require.Nil(t, rowErr)
		b, rowErr := n.Normalize(mapped(3, "2024-01-05", "Coffee Shop", "-4.50", ""), tmpl)
		require.Nil(t, rowErr)
		assert.Equal(t, a.Date, b.Date)
	})

	t.Run("account falls back to default", func(t *testing.T) {
		tx, rowErr := n.Normalize(mapped(2, "2024-01-05", "Coffee Shop", "1", ""), tmpl)
		require.Nil(t, rowErr)
		assert.Equal(t, DefaultAccount, tx.Account)
	})

	t.Run("template account overrides service default", func(t *testing.T) {
		custom := mapping.DefaultTemplate()
		custom.DefaultAccount = "Amex Gold"
		tx, rowErr := n.Normalize(mapped(2, "2024-01-05", "Coffee Shop", "1", ""), custom)
		require.Nil(t, rowErr)
		assert.Equal(t, "Amex Gold", tx.Account)
	})

	t.Run("configured default account and currency", func(t *testing.T) {
		tx, rowErr := New("Checking", "eur").Normalize(mapped(2, "2024-01-05", "Bakery", "3,20", ""), &mapping.Template{
			Name:             "eu",
			Columns:          tmpl.Columns,
			DecimalSeparator: ",",
		})
		require.Nil(t, rowErr)
		assert.Equal(t, "Checking", tx.Account)
		assert.Equal(t, "EUR", tx.Currency)
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("3.20")))
	})

	t.Run("negated column flips sign", func(t *testing.T) {
		debit := mapping.DefaultTemplate()
		debit.Negate = []string{"Debit"}
		m := mapped(2, "2024-01-05", "Coffee Shop", "4.50", "")
		m.Sources[mapping.FieldAmount] = "Debit"

		tx, rowErr := n.Normalize(m, debit)
		require.Nil(t, rowErr)
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("-4.50")))
	})

	t.Run("default template keeps sign", func(t *testing.T) {
		m := mapped(2, "2024-01-05", "Coffee Shop", "4.50", "")
		m.Sources[mapping.FieldAmount] = "Debit"

		tx, rowErr := n.Normalize(m, tmpl)
		require.Nil(t, rowErr)
		assert.True(t, tx.Amount.IsPositive())
	})
}

func TestNormalize_Rejections(t *testing.T) {
	n := New("", "")
	tmpl := mapping.DefaultTemplate()

	tests := []struct {
		name string
		row  *mapping.Mapped
		want *parser.RowError
	}{
		{
			name: "invalid date",
			row:  mapped(4, "not-a-date", "Coffee Shop", "1.00", ""),
			want: parser.InvalidDate(4, "not-a-date"),
		},
		{
			name: "invalid amount",
			row:  mapped(5, "2024-01-05", "Coffee Shop", "abc", ""),
			want: parser.InvalidAmount(5, "abc"),
		},
		{
			name: "comma decimal under point template",
			row:  mapped(8, "2024-01-05", "Coffee Shop", "-4,50", ""),
			want: parser.InvalidAmount(8, "-4,50"),
		},
		{
			name: "european grouping under point template",
			row:  mapped(9, "2024-01-05", "Grocer", "1.234,56", ""),
			want: parser.InvalidAmount(9, "1.234,56"),
		},
		{
			name: "amount beyond storage precision",
			row:  mapped(10, "2024-01-05", "Wire", "123456789012345678901.00", ""),
			want: parser.InvalidAmount(10, "123456789012345678901.00"),
		},
		{
			name: "date checked before amount",
			row:  mapped(6, "never", "Coffee Shop", "abc", ""),
			want: parser.InvalidDate(6, "never"),
		},
		{
			name: "merchant blank after cleaning",
			row:  mapped(7, "2024-01-05", "\t  ", "1.00", ""),
			want: parser.MissingField(7, "merchant"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, rowErr := n.Normalize(tt.row, tmpl)
			assert.Nil(t, tx)
			assert.Equal(t, tt.want, rowErr)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Coffee Shop", CleanText("  Coffee \t\n Shop  "))
	assert.Equal(t, "", CleanText("   "))
	assert.Equal(t, "Café", CleanText("Café"))
}
