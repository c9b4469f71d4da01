// Package calendar holds the date arithmetic shared by referrals and rewards.
package calendar

import "time"

// AcademicYearEnd returns 31 July 23:59:59 closing the academic year that
// contains now. The academic year runs 1 August to 31 July, so dates from
// August onwards roll over to the following calendar year. The result is in
// now's location.
func AcademicYearEnd(now time.Time) time.Time {
	year := now.Year()
	if now.Month() >= time.August {
		year++
	}
	return time.Date(year, time.July, 31, 23, 59, 59, 0, now.Location())
}

// AcademicYearStart returns 1 August 00:00:00 opening the academic year that contains now
func AcademicYearStart(now time.Time) time.Time {
	year := now.Year()
	if now.Month() < time.August {
		year--
	}
	return time.Date(year, time.August, 1, 0, 0, 0, 0, now.Location())
}

// MonthStart returns the first instant of now's calendar month
func MonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
