package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/sniffer"
)

// ParseSpreadsheet reads the transaction sheet of an XLSX workbook into raw rows.
// Rows above the detected header row are skipped like metadata lines in CSV exports.
func ParseSpreadsheet(data []byte) (*Batch, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, sniffer.ErrEmptyFile)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %w", ErrUnparseable, err)
	}
	defer f.Close()

	sheetName := findTransactionSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no sheets in workbook", ErrUnparseable)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %w", ErrUnparseable, sheetName, err)
	}

	headerIdx := sniffer.HeaderIndex(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, sniffer.ErrNoHeadersFound)
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	batch := &Batch{
		Kind:        FileKindSpreadsheet,
		Headers:     headers,
		HeaderLine:  headerIdx + 1,
		Fingerprint: sniffer.Fingerprint(headers),
	}
	for i := headerIdx + 1; i < len(rows); i++ {
		if isBlankRecord(rows[i]) {
			continue
		}
		batch.Rows = append(batch.Rows, newRawRow(i+1, headers, rows[i]))
	}

	return batch, nil
}

// findTransactionSheet prefers well-known sheet names and falls back to the first sheet
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	preferredNames := []string{"transactions", "statement", "movimentos", "extrato", "sheet1"}
	for _, preferred := range preferredNames {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}

	return sheets[0]
}
