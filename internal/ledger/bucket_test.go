package ledger

import (
	"testing"
	"time"

	"acctlog/internal/core"
)

func sampleEntries() []core.Entry {
	return []core.Entry{
		entry("North", sep(3), "10", "1"),
		entry("South", core.NewDay(2025, time.August, 30), "4"),
		entry("North", sep(1), "2"),
		entry("", sep(2), "7", "0", "3"),
		entry("North", core.NewDay(2024, time.December, 31), "9"),
	}
}

func TestFromEntriesKeysAndOrder(t *testing.T) {
	buckets := FromEntries(sampleEntries())
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Key
	}
	want := []string{"Default-2025-09", "North-2025-09", "South-2025-08", "North-2024-12"}
	if len(keys) != len(want) {
		t.Fatalf("keys: %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys: %v, want %v", keys, want)
		}
	}

	north := buckets[1]
	if north.MonthName != "September 2025" {
		t.Fatalf("month name: %s", north.MonthName)
	}
	if north.Entries[0].Date != sep(1) || north.Entries[1].Date != sep(3) {
		t.Fatalf("bucket entries should be ascending")
	}
	if !north.Stats.RunningAmount.Equal(d("13")) || north.Stats.Count != 2 {
		t.Fatalf("stats: %+v", north.Stats)
	}
	if buckets[0].Entries[0].Location != core.DefaultLocation {
		t.Fatalf("missing location should become Default")
	}
}

func TestBucketingPathsEquivalent(t *testing.T) {
	flat := sampleEntries()

	// Group the same entries the way a stored monthly document does.
	index := map[string]int{}
	var groups []Group
	for _, e := range flat {
		loc := e.Location
		if loc == "" {
			loc = core.DefaultLocation
		}
		k := core.BucketKey(loc, e.Date.Year(), e.Date.Month())
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Location: loc, Year: e.Date.Year(), Month: e.Date.Month()})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	// Upstream order differs from flat order.
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}

	a := FromEntries(flat)
	b := FromGroups(groups)
	if len(a) != len(b) {
		t.Fatalf("bucket count %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key != b[i].Key || len(a[i].Entries) != len(b[i].Entries) {
			t.Fatalf("bucket %d differs: %s/%d vs %s/%d", i, a[i].Key, len(a[i].Entries), b[i].Key, len(b[i].Entries))
		}
		for j := range a[i].Entries {
			ea, eb := a[i].Entries[j], b[i].Entries[j]
			if ea.Date != eb.Date || !ea.DayTotal.Equal(eb.DayTotal) || ea.Location != eb.Location {
				t.Fatalf("bucket %s entry %d differs", a[i].Key, j)
			}
		}
		if !a[i].Stats.RunningAmount.Equal(b[i].Stats.RunningAmount) {
			t.Fatalf("bucket %s stats differ", a[i].Key)
		}
	}
}

func TestFromGroupsFillsLocationFromGroup(t *testing.T) {
	buckets := FromGroups([]Group{{
		Location: "East",
		Year:     2025,
		Month:    time.September,
		Entries:  []core.Entry{entry("", sep(4), "1")},
	}})
	if buckets[0].Entries[0].Location != "East" {
		t.Fatalf("entry location: %q", buckets[0].Entries[0].Location)
	}

	mismatched := FromGroups([]Group{{
		Location: "East",
		Year:     2025,
		Month:    time.September,
		Entries:  []core.Entry{entry("West", sep(4), "1")},
	}})
	if len(mismatched) != 1 || mismatched[0].Key != "East-2025-09" || mismatched[0].Entries[0].Location != "East" {
		t.Fatalf("group location should win: %+v", mismatched)
	}
}

func TestBucketsAppliesFilter(t *testing.T) {
	got := Buckets(sampleEntries(), Spec{Location: "North"})
	if len(got) != 2 {
		t.Fatalf("expected two North buckets, got %d", len(got))
	}
	for _, b := range got {
		if b.Location != "North" {
			t.Fatalf("unexpected bucket %s", b.Key)
		}
	}
}
