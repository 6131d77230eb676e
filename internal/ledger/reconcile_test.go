package ledger

import (
	"testing"

	"acctlog/internal/core"
)

func TestScenarioThreeFirstEntryMask(t *testing.T) {
	entries := []core.Entry{
		entry("A", sep(1), "10", "0", "7"),
		entry("A", sep(2), "20", "4", "1"),
	}
	res := ReconcileEntries(entries, MaskFirstEntry)
	if !res.Changed {
		t.Fatalf("expected a change")
	}
	for i, e := range res.Entries {
		if len(e.Credits) != 1 {
			t.Fatalf("entry %d credits: %v", i, e.Credits)
		}
	}
	// The second entry's non-zero column 0 is discarded with the anchor's zero.
	if !res.Entries[1].Credits[0].Equal(d("1")) {
		t.Fatalf("second entry kept wrong column: %v", res.Entries[1].Credits)
	}
	if len(res.Discarded) != 1 || res.Discarded[0].EntryIndex != 1 || res.Discarded[0].Column != 0 || !res.Discarded[0].Value.Equal(d("4")) {
		t.Fatalf("discarded: %+v", res.Discarded)
	}
	if !res.Entries[1].DayTotal.Equal(d("21")) || !res.Entries[1].RunningAmount.Equal(d("38")) {
		t.Fatalf("derived: %s %s", res.Entries[1].DayTotal, res.Entries[1].RunningAmount)
	}
	if !res.Entries[0].MonthlyAverage.Equal(d("19")) {
		t.Fatalf("average: %s", res.Entries[0].MonthlyAverage)
	}
	if len(entries[1].Credits) != 2 {
		t.Fatalf("input mutated")
	}
}

func TestAllEntriesMaskKeepsLaterValues(t *testing.T) {
	entries := []core.Entry{
		entry("A", sep(1), "10", "0", "7", "0"),
		entry("A", sep(2), "20", "4", "1", "0"),
	}
	res := ReconcileEntries(entries, MaskAllEntries)
	if len(res.Discarded) != 0 {
		t.Fatalf("nothing non-zero should be lost: %+v", res.Discarded)
	}
	if len(res.Entries[0].Credits) != 2 || !res.Entries[1].Credits[0].Equal(d("4")) {
		t.Fatalf("credits: %v %v", res.Entries[0].Credits, res.Entries[1].Credits)
	}
}

func TestIndicesBeyondMaskDropped(t *testing.T) {
	entries := []core.Entry{
		entry("A", sep(1), "1", "5"),
		entry("A", sep(2), "1", "5", "6"),
	}
	res := ReconcileEntries(entries, MaskFirstEntry)
	if len(res.Entries[1].Credits) != 1 {
		t.Fatalf("credits beyond the anchor should be dropped: %v", res.Entries[1].Credits)
	}
	if len(res.Discarded) != 1 || res.Discarded[0].Column != 1 {
		t.Fatalf("discarded: %+v", res.Discarded)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	for _, mode := range []MaskMode{MaskFirstEntry, MaskAllEntries} {
		entries := []core.Entry{
			entry("A", sep(3), "10", "0", "7", "0"),
			entry("A", sep(1), "20", "4", "1", "0"),
			entry("A", sep(2), "5"),
		}
		first := ReconcileEntries(entries, mode)
		second := ReconcileEntries(first.Entries, mode)
		if second.Changed {
			t.Fatalf("%s: second pass changed data", mode)
		}
		if len(second.Discarded) != 0 {
			t.Fatalf("%s: second pass discarded values", mode)
		}
	}
}

func TestReconcileNoopOnCleanData(t *testing.T) {
	clean := Recompute([]core.Entry{
		entry("A", sep(1), "1", "2"),
		entry("A", sep(2), "3", "4"),
	})
	if res := ReconcileEntries(clean, MaskFirstEntry); res.Changed {
		t.Fatalf("clean data should not change")
	}
	if res := ReconcileEntries(nil, MaskFirstEntry); res.Changed || len(res.Entries) != 0 {
		t.Fatalf("empty input")
	}
}

func TestParseMaskMode(t *testing.T) {
	cases := map[string]MaskMode{"": MaskFirstEntry, "first-entry": MaskFirstEntry, "ALL-ENTRIES": MaskAllEntries}
	for in, want := range cases {
		got, err := ParseMaskMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMaskMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMaskMode("random"); err == nil {
		t.Fatalf("expected error")
	}
}
