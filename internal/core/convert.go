package core

// convert.go turns raw spreadsheet cells into typed values.
//
// Spreadsheets pass through several tools before they reach us, so cells
// arrive with artifacts: Excel formula prefixes (="123"), numeric coercion
// of identifiers ("123456.0"), years as floats ("2025.0") and dates in
// whatever layout the operator's locale produced.
//
// The ToPg* helpers build pgtype values for the store; empty input yields
// Valid=false so the database records NULL.

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// HeaderIndex maps a normalized column header to its position.
type HeaderIndex map[string]int

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Day-first layouts come before month-first ones: operators are in Colombia.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2006-01-02T15:04:05", "2006-01-02 15:04:05",
		"20060102",
	}
)

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased and accent-stripped, so "Año Inicio" and
// "ano inicio" resolve to the same column.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := headerKey(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func headerKey(h string) string {
	return strings.ToLower(Normalize(CleanCell(h)))
}

// Has reports whether the named column is present.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h[headerKey(name)]
	return ok
}

// Index returns the column position of name.
func (h HeaderIndex) Index(name string) (int, bool) {
	i, ok := h[headerKey(name)]
	return i, ok
}

// Cell returns the cleaned value of the named column, or "" when the column
// is absent or the row is short.
func (h HeaderIndex) Cell(row []string, name string) string {
	i, ok := h[headerKey(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return CleanCell(row[i])
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// DocumentNumber extracts the integer-like prefix of a document cell.
// "123456.0" becomes "123456"; missing-value tokens become "".
func DocumentNumber(cell string) string {
	s := CleanCell(cell)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return ""
	}
	return s
}

// ParseYear reads a year cell, accepting float renderings such as "2025.0".
func ParseYear(cell string) (int, bool) {
	s := CleanCell(cell)
	if IsMissing(s) {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseDate parses a date cell in any of the supported layouts.
// A trailing time component ("1990-05-01 00:00:00") is ignored.
func ParseDate(cell string) (time.Time, bool) {
	s := CleanCell(cell)
	if isMissingDate(s) {
		return time.Time{}, false
	}
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[0]
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// BirthDateText renders a birth-date cell as YYYY-MM-DD when it parses,
// otherwise the first whitespace-separated token of the raw cell.
func BirthDateText(cell string) string {
	if t, ok := ParseDate(cell); ok {
		return t.Format(DateLayout)
	}
	s := CleanCell(cell)
	if isMissingDate(s) {
		return ""
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// DateLayout is the storage and display format for calendar dates.
const DateLayout = "2006-01-02"

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a date cell to pgtype.Date.
func ToPgDate(s string) pgtype.Date {
	t, ok := ParseDate(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// TimeToPgDate converts a time to pgtype.Date; the zero time is NULL.
func TimeToPgDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}
