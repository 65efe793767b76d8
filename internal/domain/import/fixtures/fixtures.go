// Package fixtures generates realistic statement files for tests and benchmarks.
package fixtures

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Row is one statement line as a bank would export it.
type Row struct {
	Date     string `csv:"Date"`
	Merchant string `csv:"Merchant"`
	Amount   string `csv:"Amount"`
	Account  string `csv:"Account"`
}

// Generator produces statement rows using gofakeit.
type Generator struct {
	faker *gofakeit.Faker
	from  time.Time
	to    time.Time
}

// NewGenerator creates a generator with a fixed seed so output is reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		from:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		to:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

var merchants = []string{
	"Amazon", "Walmart", "Target", "Costco", "Starbucks",
	"McDonald's", "Uber", "Lyft", "Netflix", "Spotify",
	"Whole Foods", "Trader Joe's", "CVS Pharmacy", "Shell",
	"Delta Airlines", "Marriott", "Home Depot", "Best Buy", "IKEA",
}

var accounts = []string{"Visa 4421", "Amex 1009", "Checking"}

// Row generates a single random row. Most rows are expenses.
func (g *Generator) Row() Row {
	cents := g.faker.Int64() % 50000
	if cents < 0 {
		cents = -cents
	}
	amount := decimal.New(cents+1, -2)
	if g.faker.Number(1, 10) <= 8 {
		amount = amount.Neg()
	}

	return Row{
		Date:     g.faker.DateRange(g.from, g.to).Format("2006-01-02"),
		Merchant: g.faker.RandomString(merchants),
		Amount:   amount.StringFixed(2),
		Account:  g.faker.RandomString(accounts),
	}
}

// Rows generates n rows with pairwise distinct date, merchant, amount and account.
func (g *Generator) Rows(n int) []Row {
	seen := make(map[Row]struct{}, n)
	rows := make([]Row, 0, n)
	for len(rows) < n {
		r := g.Row()
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		rows = append(rows, r)
	}
	return rows
}

// CSV renders rows with a Date,Merchant,Amount,Account header.
func CSV(rows []Row) ([]byte, error) {
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return data, nil
}

// Spreadsheet renders rows as an .xlsx workbook with a single sheet.
func Spreadsheet(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Date", "Merchant", "Amount", "Account"}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{r.Date, r.Merchant, r.Amount, r.Account}); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
