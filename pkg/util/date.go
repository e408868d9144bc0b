package util

import (
	"strconv"
	"time"
)

// LayoutDateTime is the timestamp layout of the market data backend.
const LayoutDateTime = "2006-01-02 15:04:05"

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	LayoutDateTime,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime tries RFC3339, the backend layout, plain dates, and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// TimeframeDuration returns the bucket width of a timeframe label such as "5m" or "4h".
func TimeframeDuration(tf string) (time.Duration, bool) {
	switch tf {
	case "1m":
		return time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "30m":
		return 30 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

// AlignFromTo rounds the time range to bucket boundaries for the timeframe.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	d, ok := TimeframeDuration(tf)
	if !ok {
		d = time.Minute
	}
	return from.Truncate(d), to.Truncate(d)
}
