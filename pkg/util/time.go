package util

import (
	"strconv"
	"time"
)

// ParseTime tries a caller-supplied layout first, then RFC3339 variants,
// then unix seconds and milliseconds. Source payloads assert observation
// times in all of these shapes.
func ParseTime(s, layout string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		// 13 digits and up is milliseconds
		if ts > 1e12 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns the default on empty/invalid
// input.
func ParseTimeDefault(s, layout string, def time.Time) time.Time {
	if t, ok := ParseTime(s, layout); ok {
		return t
	}
	return def
}

// ParseIntDefault parses string to int or returns the default.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
