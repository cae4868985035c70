package model

import "time"

// DayBounds returns the calendar day containing t as the half-open range
// [start, end), both in t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// OnDay reports whether t falls within the calendar day of day, in day's location.
func OnDay(t, day time.Time) bool {
	start, end := DayBounds(day)
	return !t.Before(start) && t.Before(end)
}
