package util

import "time"

// Argentina is fixed at UTC-3 all year, so local midnight is always 03:00 UTC.
const argentinaOffset = 3 * time.Hour

const weekLength = 7 * 24 * time.Hour

// WeekWindow is the Monday 00:00 to Sunday 23:59:59.999 Argentina-local
// interval, expressed as UTC instants.
type WeekWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeekStart returns Monday 00:00 Argentina time (03:00 UTC) of the week
// containing t. All arithmetic happens on the UTC instant.
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	// Shift into Argentina wall time so Sunday night (already Monday UTC)
	// stays in the week it belongs to.
	local := u.Add(-argentinaOffset)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	monday := time.Date(local.Year(), local.Month(), local.Day()-daysSinceMonday, 0, 0, 0, 0, time.UTC)
	return monday.Add(argentinaOffset)
}

// WeekEnd returns WeekStart(t) + 7 days - 1ms.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).Add(weekLength - time.Millisecond)
}

func WeekOf(t time.Time) WeekWindow {
	start := WeekStart(t)
	return WeekWindow{Start: start, End: start.Add(weekLength - time.Millisecond)}
}

func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
