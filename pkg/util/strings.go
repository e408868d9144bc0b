package util

import "strings"

// NormalizeSymbol upper-cases a pair and strips separators ("eur/usd" -> "EURUSD").
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}
