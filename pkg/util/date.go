package util

import (
	"strconv"
	"time"
)

// unixMilliThreshold separates unix seconds from unix milliseconds.
const unixMilliThreshold = 1_000_000_000_000

// ParseTime accepts RFC3339, RFC3339Nano, unix seconds and unix milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts >= unixMilliThreshold {
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns def if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignFromTo truncates both ends of a range to multiples of step.
func AlignFromTo(from, to time.Time, step time.Duration) (time.Time, time.Time) {
	if step <= 0 {
		step = time.Minute
	}
	return from.Truncate(step), to.Truncate(step)
}

// TimeRange resolves optional from/to strings into a range ending now (or at
// to) and spanning at most def when from is missing.
func TimeRange(fromS, toS string, now time.Time, def time.Duration) (time.Time, time.Time) {
	to := ParseTimeDefault(toS, now)
	from := ParseTimeDefault(fromS, to.Add(-def))
	if from.After(to) {
		from, to = to, from
	}
	return from, to
}
