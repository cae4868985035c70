package model

import (
	"testing"
	"time"
)

func TestDayBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2026-03-08 is the spring-forward day in New York: 23 hours long.
	start, end := DayBounds(time.Date(2026, 3, 8, 15, 30, 0, 0, ny))
	if !start.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, ny)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, ny)) {
		t.Errorf("end = %v", end)
	}
	if got := end.Sub(start); got != 23*time.Hour {
		t.Errorf("day length = %v, want 23h", got)
	}
}

func TestOnDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, ny)

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"midnight is included", time.Date(2026, 3, 1, 0, 0, 0, 0, ny), true},
		{"next midnight is excluded", time.Date(2026, 3, 2, 0, 0, 0, 0, ny), false},
		{"UTC late evening is still the same local day", time.Date(2026, 3, 2, 4, 59, 0, 0, time.UTC), true},
		{"UTC early morning is the previous local day", time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnDay(tt.ts, day); got != tt.want {
				t.Errorf("OnDay(%v) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}
