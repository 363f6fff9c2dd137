// Package period maps instants to the calendar periods quota counters belong to.
//
// All functions take the evaluation instant explicitly. Days and weeks are
// computed in the configured location; weeks start on Monday.
package period

import "time"

// Type is the length of a quota period.
type Type string

const (
	Daily  Type = "daily"
	Weekly Type = "weekly"
)

const keyLayout = "2006-01-02"

// Period is a half-open interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
	Type  Type
}

// Key is the canonical identifier of the period: its first calendar date.
func (p Period) Key() string {
	return p.Start.Format(keyLayout)
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Keyer computes periods in a fixed location.
type Keyer struct {
	loc *time.Location
}

// NewKeyer returns a Keyer for loc. A nil location means UTC.
func NewKeyer(loc *time.Location) Keyer {
	if loc == nil {
		loc = time.UTC
	}
	return Keyer{loc: loc}
}

// Location returns the keyer's location.
func (k Keyer) Location() *time.Location {
	if k.loc == nil {
		return time.UTC
	}
	return k.loc
}

// Day returns the calendar day containing t.
func (k Keyer) Day(t time.Time) Period {
	start := k.startOfDay(t)
	return Period{Start: start, End: start.AddDate(0, 0, 1), Type: Daily}
}

// Week returns the Monday-to-Sunday week containing t.
func (k Keyer) Week(t time.Time) Period {
	day := k.startOfDay(t)
	// time.Weekday is Sunday=0; shift so Monday=0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Period{Start: start, End: start.AddDate(0, 0, 7), Type: Weekly}
}

// Of returns the period of the given type containing t.
func (k Keyer) Of(typ Type, t time.Time) Period {
	if typ == Weekly {
		return k.Week(t)
	}
	return k.Day(t)
}

// DayKey is shorthand for Day(t).Key().
func (k Keyer) DayKey(t time.Time) string {
	return k.Day(t).Key()
}

// WeekKey is shorthand for Week(t).Key().
func (k Keyer) WeekKey(t time.Time) string {
	return k.Week(t).Key()
}

// AddDays moves t by n calendar days keeping its wall-clock time in the keyer's location.
func (k Keyer) AddDays(t time.Time, n int) time.Time {
	return t.In(k.Location()).AddDate(0, 0, n)
}

func (k Keyer) startOfDay(t time.Time) time.Time {
	lt := t.In(k.Location())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, k.Location())
}
