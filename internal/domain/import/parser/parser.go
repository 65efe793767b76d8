// Package parser turns uploaded statement files into raw rows keyed by column name.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/sniffer"
)

// FileKind identifies the layout family of an upload.
type FileKind string

const (
	FileKindDelimited   FileKind = "delimited"
	FileKindSpreadsheet FileKind = "spreadsheet"
)

// ErrUnparseable is returned when a file is empty, corrupt or has no header row.
var ErrUnparseable = errors.New("file could not be parsed")

// RawRow is a single data line keyed by source column name.
type RawRow struct {
	Line    int               // 1-based line in the source file
	Values  map[string]string // column name -> raw cell
	Columns []string          // header names in source order
}

// Lookup returns the value of the named column. Names match case-insensitively
// and ignore surrounding whitespace. An exact match wins; otherwise the
// leftmost matching column does.
func (r RawRow) Lookup(column string) (string, bool) {
	if v, ok := r.Values[column]; ok {
		return v, true
	}
	names := r.Columns
	if names == nil {
		names = slices.Sorted(maps.Keys(r.Values))
	}
	want := strings.TrimSpace(column)
	for _, name := range names {
		if !strings.EqualFold(strings.TrimSpace(name), want) {
			continue
		}
		if v, ok := r.Values[name]; ok {
			return v, true
		}
	}
	return "", false
}

// Batch is the parsed content of one upload.
type Batch struct {
	Kind        FileKind
	Headers     []string
	Rows        []RawRow
	Delimiter   rune
	HeaderLine  int // 1-based line of the header row
	Fingerprint string
}

// Parse dispatches on the declared file kind. An empty kind is treated as delimited text.
func Parse(kind FileKind, data []byte) (*Batch, error) {
	switch kind {
	case FileKindSpreadsheet:
		return ParseSpreadsheet(data)
	case FileKindDelimited, "":
		return ParseDelimited(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file kind %q", ErrUnparseable, kind)
	}
}

// ParseDelimited reads CSV-like text. The header row and delimiter are sniffed,
// so metadata lines above the header are skipped.
func ParseDelimited(data []byte) (*Batch, error) {
	data = NormalizeEncoding(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, sniffer.ErrEmptyFile)
	}

	config, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headerLine := config.SkipLines + 1
	batch := &Batch{
		Kind:        FileKindDelimited,
		Headers:     config.Headers,
		Delimiter:   config.Delimiter,
		HeaderLine:  headerLine,
		Fingerprint: config.Fingerprint,
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
		}
		line, _ := reader.FieldPos(0)
		if line <= headerLine {
			continue
		}
		if isBlankRecord(record) {
			continue
		}
		batch.Rows = append(batch.Rows, newRawRow(line, batch.Headers, record))
	}

	return batch, nil
}

// NormalizeEncoding strips a UTF-8 byte order mark and decodes non UTF-8 input
// as Windows-1252, which covers the Latin-1 exports most banks produce.
func NormalizeEncoding(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

func newRawRow(line int, headers, record []string) RawRow {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(record) {
			continue
		}
		// first column wins when a header repeats
		if _, seen := values[h]; seen {
			continue
		}
		values[h] = record[i]
	}
	return RawRow{Line: line, Values: values, Columns: headers}
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
