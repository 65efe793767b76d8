// Package sniffer provides automatic detection of CSV/TSV file formats.
// It identifies delimiters, header rows, and generates fingerprints for template recognition.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// maxHeaderScan bounds how far into a file the header row is searched for.
const maxHeaderScan = 20

// Common statement header keywords (multi-language)
var headerKeywords = []string{
	// English
	"date", "description", "amount", "debit", "credit", "balance", "category", "merchant",
	"account", "payee", "memo",
	// Portuguese
	"data mov", "descrição", "descricao", "débito", "debito", "crédito", "credito",
	"data valor", "saldo", "categoria", "montante",
	// Spanish
	"fecha", "descripción", "descripcion", "importe", "cargo", "abono",
}

var keywordMatcher = ahocorasick.NewStringMatcher(headerKeywords)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// FileConfig holds the detected configuration for a CSV/TSV file
type FileConfig struct {
	Delimiter   rune       // The field delimiter (';', ',', '\t', '|')
	SkipLines   int        // Number of lines before the header row
	Headers     []string   // Detected header names
	Fingerprint string     // SHA256 of normalized headers
	SampleRows  [][]string // First few data rows for preview
}

// DetectConfig analyzes a CSV/TSV file and returns its configuration
func DetectConfig(data []byte) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")

	delimiter, skipLines, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	headerLine := cleanLine(lines[skipLines], skipLines == 0)
	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: Fingerprint(headers),
		SampleRows:  getSampleRows(data, delimiter, skipLines+1, 5),
	}, nil
}

// HeaderIndex finds the header row among already split rows, as read from a
// spreadsheet. It returns -1 when no row qualifies.
func HeaderIndex(rows [][]string) int {
	best, bestHits := -1, 0
	fallback := -1
	for i, row := range rows {
		if i > maxHeaderScan {
			break
		}
		cells := nonEmpty(row)
		if cells < 2 {
			continue
		}
		hits := keywordHits(strings.Join(row, " "))
		if hits > bestHits && !hasValueCell(row) {
			best, bestHits = i, hits
		}
		if fallback < 0 && cells >= 3 {
			fallback = i
		}
	}
	if best >= 0 {
		return best
	}
	return fallback
}

// Fingerprint creates a stable hash from header names. Case and punctuation are ignored.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// findHeaderRow locates the header row and its delimiter. Lines with header
// keywords win; otherwise the first line with the most columns is used.
func findHeaderRow(lines []string) (rune, int, error) {
	keywordIndex, keywordDelimiter, keywordScore := -1, rune(0), 0
	fallbackIndex, fallbackDelimiter, fallbackCount := -1, rune(0), 0

	for i, line := range lines {
		if i > maxHeaderScan {
			break
		}

		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		if hits := keywordHits(line); hits > 0 && !looksLikeData(line, delimiter) {
			// more keywords first, then more columns
			score := hits*100 + count
			if score > keywordScore {
				keywordIndex, keywordDelimiter, keywordScore = i, delimiter, score
			}
			continue
		}

		if count > fallbackCount {
			fallbackIndex, fallbackDelimiter, fallbackCount = i, delimiter, count
		}
	}

	if keywordIndex >= 0 {
		return keywordDelimiter, keywordIndex, nil
	}
	if fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIndex, nil
	}
	if fallbackIndex < 0 {
		return 0, 0, ErrInvalidDelimiter
	}
	return 0, 0, ErrNoHeadersFound
}

// looksLikeData reports whether any cell of line is a bare date or amount.
// Descriptions such as "POS DEBIT CREDIT UNION" hit header keywords, so a
// keyword match alone does not make a header.
func looksLikeData(line string, delimiter rune) bool {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil {
		return false
	}
	return hasValueCell(cells)
}

func hasValueCell(cells []string) bool {
	for _, cell := range cells {
		if isValueCell(cell) {
			return true
		}
	}
	return false
}

func isValueCell(cell string) bool {
	digits := false
	for _, r := range cell {
		switch {
		case unicode.IsLetter(r):
			return false
		case unicode.IsDigit(r):
			digits = true
		}
	}
	return digits
}

func keywordHits(line string) int {
	return len(keywordMatcher.Match([]byte(strings.ToLower(line))))
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

func nonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}

// getSampleRows returns the first N data rows after the header
func getSampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line, _ := reader.FieldPos(0)
		if line > startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
	}

	return rows
}
