package formatting

import (
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

var wholeNumberPattern = regexp.MustCompile(`^-?\d+\.0+$`)

// HeaderKey folds a header cell so "team name", "Team_Name" and "TEAM-NAME" match.
func HeaderKey(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '_', '-':
			return -1
		}
		return r
	}, header)
}

// NormalizeCell trims a cell value and collapses internal whitespace.
func NormalizeCell(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	return whitespacePattern.ReplaceAllString(text, " ")
}

// NormalizeID cleans identifier cells. Spreadsheet exports often write integer
// ids as floats ("1042.0"), which would otherwise split one subject in two.
func NormalizeID(raw string) string {
	id := NormalizeCell(raw)
	if wholeNumberPattern.MatchString(id) {
		id = id[:strings.IndexByte(id, '.')]
	}
	switch strings.ToLower(id) {
	case "nan", "nat", "null", "none", "n/a":
		return ""
	}
	return id
}
