package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, ts.Unix(), got.Unix())

	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("yesterday", def).Equal(def))
}

func TestTimeRange(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	from, to := TimeRange("", "", now, 24*time.Hour)
	assert.True(t, to.Equal(now))
	assert.True(t, from.Equal(now.Add(-24*time.Hour)))

	from, to = TimeRange("2024-01-03T00:00:00Z", "2024-01-01T00:00:00Z", now, time.Hour)
	assert.True(t, from.Before(to), "reversed bounds are swapped")
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 7, 30, 0, time.UTC)
	f, to := AlignFromTo(from, from.Add(time.Hour), 5*time.Minute)
	assert.Equal(t, 5, f.Minute())
	assert.Equal(t, 0, f.Second())
	assert.Equal(t, 5, to.Minute())
}
