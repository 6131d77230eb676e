package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DayLayout is the form and storage layout for a calendar day.
const DayLayout = "2006-01-02"

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewDay returns midnight UTC of the given calendar day.
func NewDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !dayPattern.MatchString(s) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// CalendarDay truncates t to midnight of its own calendar day, keeping the zone.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CompareDay orders a and b by calendar day only: -1, 0 or 1.
func CompareDay(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	switch {
	case ay != by:
		return cmpInt(ay, by)
	case am != bm:
		return cmpInt(int(am), int(bm))
	default:
		return cmpInt(ad, bd)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CanEditEntry reports whether an entry dated day may still be edited at now.
// Editing is allowed on the day of logging and the day after.
func CanEditEntry(day, now time.Time) bool {
	if day.IsZero() {
		return false
	}
	return SameDay(day, now) || SameDay(day, now.AddDate(0, 0, -1))
}

// IsDateLogged reports whether any entry falls on the same calendar day as day.
func IsDateLogged(entries []Entry, day time.Time) bool {
	for _, e := range entries {
		if SameDay(e.Date, day) {
			return true
		}
	}
	return false
}

// MonthKey renders "YYYY-MM".
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ParseMonthKey is the inverse of MonthKey.
func ParseMonthKey(key string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(key))
	if err != nil {
		return 0, 0, fmt.Errorf("parse month key %q: %w", key, ErrInvalidDate)
	}
	return t.Year(), t.Month(), nil
}

// BucketKey renders "{location}-{YYYY}-{MM}".
func BucketKey(location string, year int, month time.Month) string {
	return location + "-" + MonthKey(year, month)
}

// MonthName renders the display label, e.g. "September 2025".
func MonthName(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}
