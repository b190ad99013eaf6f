// Package calendar maps dates onto the congressional calendar: legislative
// years, congress numbers, and the two sessions of each congress.
package calendar

import "time"

// Point is a date placed on the legislative calendar.
type Point struct {
	Year       int `json:"legislative_year"`
	SubSession int `json:"sub_session"`
	Congress   int `json:"congress"`
}

// At returns the calendar point for t.
func At(t time.Time) Point {
	y := LegislativeYear(t)
	return Point{
		Year:       y,
		SubSession: SubSessionForYear(y),
		Congress:   SessionForYear(y),
	}
}

// LegislativeYear returns the year a moment belongs to. Sessions convene at
// noon on January 3, so anything earlier in January counts toward the prior
// year. The wall clock of t's location is used.
func LegislativeYear(t time.Time) int {
	y := t.Year()
	if t.Month() != time.January {
		return y
	}
	switch d := t.Day(); {
	case d < 3:
		return y - 1
	case d == 3 && t.Hour() < 12:
		return y - 1
	}
	return y
}

// SessionForYear returns the congress number sitting in the given year.
func SessionForYear(year int) int {
	return ((year + 1) / 2) - 894
}

// YearsForCongress returns the two calendar years spanned by a congress.
func YearsForCongress(congress int) [2]int {
	first := ((congress + 894) * 2) - 1
	return [2]int{first, first + 1}
}

// SubSessionForYear returns 1 for odd years and 2 for even years.
func SubSessionForYear(year int) int {
	if s := year % 2; s != 0 {
		return 1
	}
	return 2
}

// YearForSubSession returns the calendar year of session 1 or 2 of a congress.
func YearForSubSession(congress, subSession int) int {
	years := YearsForCongress(congress)
	if subSession == 2 {
		return years[1]
	}
	return years[0]
}

// IsCacheWindow reports whether the Senate floor log may be served from an
// intermediate cache at now. The page is regenerated around midnight and mid
// morning; outside those windows a cache-busting parameter is sent.
func IsCacheWindow(now time.Time) bool {
	h, m := now.Hour(), now.Minute()
	switch {
	case h == 0:
		return true
	case h == 1 && m < 5:
		return true
	case h == 11 && m > 5:
		return true
	}
	return false
}

// Clock supplies the current time. It is injected so date-dependent code can
// be exercised against fixed moments.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Loc *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Loc == nil {
		return time.Now()
	}
	return time.Now().In(c.Loc)
}

// FixedClock always returns the same moment.
type FixedClock time.Time

// Now returns the fixed moment.
func (c FixedClock) Now() time.Time { return time.Time(c) }
