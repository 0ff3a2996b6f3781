// Package isoweek provides ISO-8601 week arithmetic for the weekly
// snapshot cadence. All year-rollover logic lives here so the monitor
// service never does week math inline.
package isoweek

import "time"

// Of returns the ISO week number and ISO year for t.
// Note the ISO year can differ from the calendar year near January 1.
func Of(t time.Time) (week, year int) {
	y, w := t.ISOWeek()
	return w, y
}

// Previous returns the ISO week immediately before (week, year),
// handling the year boundary. Week 1 rolls back to the last week of the
// previous ISO year, which is 52 or 53 depending on the year.
func Previous(week, year int) (int, int) {
	if week > 1 {
		return week - 1, year
	}
	return WeeksInYear(year - 1), year - 1
}

// WeeksInYear returns the number of ISO weeks in the given ISO year
// (52 or 53). December 28 is always in the last ISO week of its year.
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}
