package period

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestKeyer_Week(t *testing.T) {
	k := NewKeyer(time.UTC)

	tests := []struct {
		name  string
		at    time.Time
		start string
	}{
		{"monday", time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), "2026-03-02"},
		{"wednesday", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), "2026-03-02"},
		{"sunday end of day", time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC), "2026-03-02"},
		{"next monday midnight", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), "2026-03-09"},
		{"across year", time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), "2026-12-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := k.Week(tt.at)
			assert.Equal(t, tt.start, p.Key())
			assert.Equal(t, Weekly, p.Type)
			assert.True(t, p.Contains(tt.at))
			assert.Equal(t, 7*24*time.Hour, p.End.Sub(p.Start))
		})
	}
}

func TestKeyer_WeekBoundaryIsHalfOpen(t *testing.T) {
	k := NewKeyer(time.UTC)
	lastSecond := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC)
	nextWeek := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	week := k.Week(lastSecond)
	assert.True(t, week.Contains(lastSecond))
	assert.False(t, week.Contains(nextWeek))
	assert.NotEqual(t, k.WeekKey(lastSecond), k.WeekKey(nextWeek))
}

func TestKeyer_DayUsesLocation(t *testing.T) {
	ba := mustLoad(t, "America/Argentina/Buenos_Aires")
	k := NewKeyer(ba)

	// 02:00 UTC is 23:00 of the previous day in Buenos Aires (UTC-3).
	at := time.Date(2026, 5, 10, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-05-09", k.DayKey(at))
	assert.Equal(t, "2026-05-10", NewKeyer(time.UTC).DayKey(at))

	day := k.Day(at)
	assert.True(t, day.Contains(at))
	assert.Equal(t, 24*time.Hour, day.End.Sub(day.Start))
}

func TestKeyer_AddDaysKeepsWallClock(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	k := NewKeyer(ny)

	// DST starts 2026-03-08 in New York.
	before := time.Date(2026, 3, 5, 19, 30, 0, 0, ny)
	after := k.AddDays(before, 7)

	assert.Equal(t, 19, after.Hour())
	assert.Equal(t, 30, after.Minute())
	assert.Equal(t, 12, after.Day())
	assert.NotEqual(t, 7*24*time.Hour, after.Sub(before))
}

func TestKeyer_NilLocationIsUTC(t *testing.T) {
	k := NewKeyer(nil)
	assert.Equal(t, time.UTC, k.Location())
	assert.Equal(t, "2026-01-05", k.WeekKey(time.Date(2026, 1, 11, 8, 0, 0, 0, time.UTC)))
}

func TestKeyer_Of(t *testing.T) {
	k := NewKeyer(time.UTC)
	at := time.Date(2026, 6, 17, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, k.Day(at), k.Of(Daily, at))
	assert.Equal(t, k.Week(at), k.Of(Weekly, at))
}
