package core

import (
	"testing"
	"time"
)

func TestCanEditEntry(t *testing.T) {
	now := time.Date(2025, time.September, 10, 15, 30, 0, 0, time.UTC)
	cases := []struct {
		day  time.Time
		want bool
	}{
		{NewDay(2025, time.September, 10), true},
		{NewDay(2025, time.September, 9), true},
		{NewDay(2025, time.September, 8), false},
		{NewDay(2025, time.September, 11), false},
		{time.Time{}, false},
	}
	for _, tc := range cases {
		if got := CanEditEntry(tc.day, now); got != tc.want {
			t.Errorf("CanEditEntry(%s) = %v, want %v", tc.day.Format(DayLayout), got, tc.want)
		}
	}

	// Month boundary.
	first := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)
	if !CanEditEntry(NewDay(2025, time.September, 30), first) {
		t.Fatalf("yesterday across a month boundary should be editable")
	}
}

func TestIsDateLogged(t *testing.T) {
	entries := []Entry{{Date: NewDay(2025, 2, 1)}, {Date: NewDay(2025, 2, 3)}}
	if !IsDateLogged(entries, time.Date(2025, 2, 3, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2025-02-03 logged")
	}
	if IsDateLogged(entries, NewDay(2025, 2, 2)) {
		t.Fatalf("2025-02-02 not logged")
	}
}

func TestParseDay(t *testing.T) {
	if _, err := ParseDay("2025-02-30"); err == nil {
		t.Fatalf("expected invalid calendar day")
	}
	if _, err := ParseDay("2025-2-3"); err == nil {
		t.Fatalf("expected layout mismatch")
	}
	got, err := ParseDay(" 2024-02-29 ")
	if err != nil || got.Day() != 29 {
		t.Fatalf("leap day: %v %v", got, err)
	}
}

func TestMonthKeys(t *testing.T) {
	if MonthKey(2025, time.January) != "2025-01" {
		t.Fatalf("MonthKey")
	}
	y, m, err := ParseMonthKey("2024-11")
	if err != nil || y != 2024 || m != time.November {
		t.Fatalf("ParseMonthKey: %d %v %v", y, m, err)
	}
	if _, _, err := ParseMonthKey("nope"); err == nil {
		t.Fatalf("expected error")
	}
	if MonthName(2025, time.September) != "September 2025" {
		t.Fatalf("MonthName: %s", MonthName(2025, time.September))
	}
}

func TestCompareDay(t *testing.T) {
	a := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	b := NewDay(2025, 1, 1)
	if CompareDay(a, b) != 0 {
		t.Fatalf("same day should compare equal")
	}
	if CompareDay(b, NewDay(2025, 1, 2)) != -1 || CompareDay(NewDay(2026, 1, 1), b) != 1 {
		t.Fatalf("ordering")
	}
}
