package sqlite

import "strings"

// EscapeIdentifier quotes a table or column name for interpolation into a
// statement, doubling any embedded double quote.
func EscapeIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func escapeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = EscapeIdentifier(n)
	}
	return out
}
