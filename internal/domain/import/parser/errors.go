package parser

import "fmt"

// Reason classifies why a single row was rejected.
type Reason string

const (
	ReasonMissingField  Reason = "MissingField"
	ReasonInvalidDate   Reason = "InvalidDate"
	ReasonInvalidAmount Reason = "InvalidAmount"
)

// RowError describes a rejected row. It never aborts the batch.
type RowError struct {
	Row    int
	Reason Reason
	Detail string // field name or offending raw value
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.String())
}

// String renders the reason in its wire form, e.g. MissingField(merchant).
func (e RowError) String() string {
	return fmt.Sprintf("%s(%s)", e.Reason, e.Detail)
}

func MissingField(row int, field string) *RowError {
	return &RowError{Row: row, Reason: ReasonMissingField, Detail: field}
}

func InvalidDate(row int, raw string) *RowError {
	return &RowError{Row: row, Reason: ReasonInvalidDate, Detail: raw}
}

func InvalidAmount(row int, raw string) *RowError {
	return &RowError{Row: row, Reason: ReasonInvalidAmount, Detail: raw}
}
