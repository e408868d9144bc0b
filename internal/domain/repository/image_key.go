package repository

import (
	"fmt"
	"strings"

	"FinChart/internal/domain/models"
)

const imageKeyPrefix = "chart"

// ImageKey builds "chart:{symbol}:{timeframe}:{params...}". Every key of a
// subject shares the ImageKey(s) + ":" prefix.
func ImageKey(s models.Subject, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(imageKeyPrefix)
	b.WriteByte(':')
	b.WriteString(s.Symbol)
	b.WriteByte(':')
	b.WriteString(s.Timeframe)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
