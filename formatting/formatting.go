package formatting

import (
	"fmt"
	"strings"
	"time"
)

// Days renders a day count with two decimals.
func Days(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Optional renders v, or "n/a" when the value is undefined.
func Optional(v float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return Days(v)
}

// MonthLabel turns a "2006-01" group key into "Jan 2006" for chart axes.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}

// ShortWeekday abbreviates a weekday name ("Monday" -> "Mon").
func ShortWeekday(name string) string {
	if len(name) <= 3 {
		return name
	}
	return name[:3]
}

// FileSlug converts a label into a lowercase file-name fragment.
func FileSlug(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Truncate shortens s to at most n runes, marking the cut with "..".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 2 || len(runes) <= n {
		return s
	}
	return string(runes[:n-2]) + ".."
}
