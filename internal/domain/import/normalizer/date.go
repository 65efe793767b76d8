package normalizer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var ErrInvalidDate = errors.New("invalid date")

// DefaultDateFormats are tried in order. US month-first layouts come before any
// day-first layout, so an ambiguous "01/05/2024" is January 5th.
var DefaultDateFormats = []string{
	"2006-01-02",          // ISO 8601
	"01/02/2006",          // MM/DD/YYYY
	"1/2/2006",            // M/D/YYYY
	"2006/01/02",          // YYYY/MM/DD
	"02.01.2006",          // DD.MM.YYYY (German)
	"02-Jan-2006",         // 05-Jan-2024
	"Jan 2, 2006",         // Jan 5, 2024
	"2 Jan 2006",          // 5 Jan 2024
	time.RFC3339,          // timestamps are truncated to their date
	"2006-01-02T15:04:05", // ISO without zone
	"2006-01-02 15:04:05", // ISO with space
	"01/02/2006 15:04",    // US with time
}

// ParseDate parses raw with the given layouts (DefaultDateFormats when empty)
// and returns the calendar date, dropping any time of day.
func ParseDate(raw string, layouts []string) (civil.Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return civil.Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if len(layouts) == 0 {
		layouts = DefaultDateFormats
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: unrecognized format %q", ErrInvalidDate, raw)
}
