package service

import (
	"context"
	"fmt"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/mapping"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
)

const analyzeSampleRows = 5

// Analysis describes an uploaded file without ingesting it.
type Analysis struct {
	Kind        parser.FileKind      `json:"kind"`
	Delimiter   string               `json:"delimiter,omitempty"`
	HeaderLine  int                  `json:"header_line"`
	Headers     []string             `json:"headers"`
	Fingerprint string               `json:"fingerprint"`
	SampleRows  [][]string           `json:"sample_rows"`
	RowCount    int                  `json:"row_count"`
	Template    string               `json:"template,omitempty"` // registered for this fingerprint
	Suggestions []mapping.Suggestion `json:"suggestions"`
}

// Analyze detects the layout of a file, looks for a template registered for
// its header fingerprint and proposes a column per field.
func (s *ImportService) Analyze(ctx context.Context, data []byte, kind parser.FileKind) (*Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "import.Analyze")
	defer span.End()

	batch, err := parser.Parse(kind, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBatchUnparseable, err)
	}

	a := &Analysis{
		Kind:        batch.Kind,
		HeaderLine:  batch.HeaderLine,
		Headers:     batch.Headers,
		Fingerprint: batch.Fingerprint,
		SampleRows:  sampleRows(batch, analyzeSampleRows),
		RowCount:    len(batch.Rows),
		Suggestions: mapping.Suggest(batch.Headers),
	}
	if batch.Delimiter != 0 {
		a.Delimiter = string(batch.Delimiter)
	}

	t, err := s.templates.FindByFingerprint(ctx, batch.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lookup mapping: %w", templateErrorClass(err), err)
	}
	if t != nil {
		a.Template = t.Name
	}
	return a, nil
}

// sampleRows returns up to n rows in header order.
func sampleRows(batch *parser.Batch, n int) [][]string {
	if len(batch.Rows) < n {
		n = len(batch.Rows)
	}
	out := make([][]string, 0, n)
	for _, row := range batch.Rows[:n] {
		values := make([]string, len(batch.Headers))
		for i, h := range batch.Headers {
			values[i], _ = row.Lookup(h)
		}
		out = append(out, values)
	}
	return out
}
