package core

// normalize.go canonicalizes free text typed by operators or read from
// spreadsheets so that "Bogotá", "bogota " and "BOGOTA" compare equal.
//
// Drafts exported by pandas carry "nan" or "None" for empty cells; these
// are treated as missing. "NaT" only means missing in date columns.

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// missingTokens are cell values that mean "no value".
var missingTokens = map[string]struct{}{
	"nan":  {},
	"none": {},
}

// IsMissing reports whether s is empty or a missing-value sentinel.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := missingTokens[strings.ToLower(s)]
	return ok
}

// Normalize trims, uppercases and strips combining diacritical marks.
// Missing values normalize to "". Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if IsMissing(raw) {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(raw))

	// A transformer is stateful, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// lowerCell trims and lowercases a cell, mapping missing values to "".
func lowerCell(raw string) string {
	if IsMissing(raw) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// upperCell trims and uppercases a cell without stripping accents.
func upperCell(raw string) string {
	if IsMissing(raw) {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// isMissingDate is IsMissing plus the pandas not-a-time token.
func isMissingDate(s string) bool {
	return IsMissing(s) || strings.EqualFold(strings.TrimSpace(s), "nat")
}

// SplitLocations splits a body-location cell on commas or semicolons.
// Tokens are uppercased; empty, missing and repeated tokens are dropped.
func SplitLocations(cell string) []string {
	return appendLocations(nil, cell)
}

// appendLocations adds the tokens of cell to dst, skipping any token that
// normalizes equal to one already present.
func appendLocations(dst []string, cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';'
	})
	if dst == nil {
		dst = make([]string, 0, len(fields))
	}
	for _, f := range fields {
		v := upperCell(f)
		if v == "" || hasLocation(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func hasLocation(locs []string, v string) bool {
	key := Normalize(v)
	for _, l := range locs {
		if Normalize(l) == key {
			return true
		}
	}
	return false
}

func joinLocations(locs []string) string {
	return strings.Join(locs, ", ")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
