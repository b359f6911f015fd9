package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestWeekStartKnownInstants(t *testing.T) {
	tests := []struct {
		name string
		at   string
		want string
	}{
		{"monday morning AR", "2025-08-04T12:00:00Z", "2025-08-04T03:00:00Z"},
		{"monday exactly midnight AR", "2025-08-04T03:00:00Z", "2025-08-04T03:00:00Z"},
		{"monday 02:59 UTC is still previous sunday AR", "2025-08-04T02:59:59Z", "2025-07-28T03:00:00Z"},
		{"wednesday", "2025-08-06T18:30:00Z", "2025-08-04T03:00:00Z"},
		{"sunday afternoon AR", "2025-08-10T18:00:00Z", "2025-08-04T03:00:00Z"},
		{"sunday 23:59 AR", "2025-08-11T02:59:00Z", "2025-08-04T03:00:00Z"},
		{"non-UTC location input", "2025-08-06T10:00:00-03:00", "2025-08-04T03:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(mustParse(t, tt.at))
			assert.Equal(t, mustParse(t, tt.want), got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestSundayNightRegression(t *testing.T) {
	// Sunday 21:24 Argentina time, already Monday in UTC.
	at := mustParse(t, "2025-09-01T00:24:00Z")
	start, end := WeekStart(at), WeekEnd(at)

	assert.False(t, start.After(at), "start %s after %s", start, at)
	assert.False(t, end.Before(at), "end %s before %s", end, at)
	assert.Equal(t, mustParse(t, "2025-08-25T03:00:00Z"), start)
	assert.Equal(t, mustParse(t, "2025-09-01T02:59:59.999Z"), end)
}

func TestSundayNightWindowSweep(t *testing.T) {
	// Every minute from Sunday 21:00 to 23:59 Argentina time.
	base := mustParse(t, "2025-08-11T00:00:00Z")
	want := mustParse(t, "2025-08-04T03:00:00Z")
	for m := 0; m < 180; m++ {
		at := base.Add(time.Duration(m) * time.Minute)
		w := WeekOf(at)
		require.True(t, w.Contains(at), "window %v does not contain %s", w, at)
		require.Equal(t, want, w.Start, "at %s", at)
	}
}

func TestWeekWindowProperties(t *testing.T) {
	base := mustParse(t, "2024-12-23T00:00:00Z")
	// Step by an odd number of minutes over a year to hit every weekday/hour mix.
	for at := base; at.Before(base.AddDate(1, 0, 0)); at = at.Add(97 * time.Minute) {
		start, end := WeekStart(at), WeekEnd(at)
		require.False(t, start.After(at), "start after t for %s", at)
		require.False(t, end.Before(at), "end before t for %s", at)
		require.Equal(t, 7*24*time.Hour-time.Millisecond, end.Sub(start))
		require.Equal(t, time.Monday, start.Add(-3*time.Hour).Weekday())
		require.Equal(t, 3, start.Hour())
	}
}

func TestSameLocalWeekSameStart(t *testing.T) {
	monday := mustParse(t, "2025-08-04T03:00:00Z")
	want := WeekStart(monday)
	for offset := time.Duration(0); offset < 7*24*time.Hour; offset += 13 * time.Minute {
		assert.Equal(t, want, WeekStart(monday.Add(offset)))
	}
	assert.NotEqual(t, want, WeekStart(monday.Add(7*24*time.Hour)))
	assert.NotEqual(t, want, WeekStart(monday.Add(-time.Millisecond)))
}

func TestConsecutiveWindowsAreContiguous(t *testing.T) {
	w := WeekOf(mustParse(t, "2025-08-06T12:00:00Z"))
	next := WeekOf(w.End.Add(time.Millisecond))
	assert.Equal(t, w.Start.Add(7*24*time.Hour), next.Start)
	assert.False(t, next.Contains(w.End))
}
