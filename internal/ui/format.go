package ui

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Bytes formats a file size, e.g. "1.2 MB"
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Ago formats a timestamp relative to now, e.g. "3 hours ago"
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Count formats an integer with thousands separators
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Truncate shortens s to max runes, ending in "..."
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
