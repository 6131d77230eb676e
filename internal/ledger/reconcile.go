package ledger

import (
	"fmt"
	"strings"

	"acctlog/internal/core"

	"github.com/shopspring/decimal"
)

// MaskMode selects how the reconciler decides which credit columns survive.
type MaskMode int

const (
	// MaskFirstEntry keeps a column only when the first stored entry has a
	// non-zero value in it. Later entries' values in dropped columns are lost.
	MaskFirstEntry MaskMode = iota
	// MaskAllEntries keeps a column when any entry has a non-zero value in it.
	MaskAllEntries
)

func (m MaskMode) String() string {
	switch m {
	case MaskFirstEntry:
		return "first-entry"
	case MaskAllEntries:
		return "all-entries"
	default:
		return fmt.Sprintf("MaskMode(%d)", int(m))
	}
}

// ParseMaskMode accepts "first-entry" (or empty) and "all-entries".
func ParseMaskMode(s string) (MaskMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-entry":
		return MaskFirstEntry, nil
	case "all-entries":
		return MaskAllEntries, nil
	default:
		return 0, fmt.Errorf("unknown reconcile mask %q", s)
	}
}

// Discarded is a non-zero credit value removed by the mask.
type Discarded struct {
	EntryIndex int
	DocumentID string
	Column     int
	Value      decimal.Decimal
}

// Reconciled is the outcome of reconciling one location's entries.
type Reconciled struct {
	Entries   []core.Entry
	Mask      []bool
	Changed   bool
	Discarded []Discarded
}

// ColumnMask computes which credit indices to keep.
func ColumnMask(entries []core.Entry, mode MaskMode) []bool {
	if len(entries) == 0 {
		return nil
	}
	if mode == MaskAllEntries {
		width := 0
		for _, e := range entries {
			if len(e.Credits) > width {
				width = len(e.Credits)
			}
		}
		mask := make([]bool, width)
		for _, e := range entries {
			for i, c := range e.Credits {
				if !c.IsZero() {
					mask[i] = true
				}
			}
		}
		return mask
	}
	anchor := entries[0].Credits
	mask := make([]bool, len(anchor))
	for i, c := range anchor {
		mask[i] = !c.IsZero()
	}
	return mask
}

// ReconcileEntries applies the column mask to every entry, keeping stored
// order, and recomputes derived fields. Indices beyond the mask are dropped.
// Changed is false when credits and derived fields already match, so a
// second pass over the output is a no-op.
func ReconcileEntries(entries []core.Entry, mode MaskMode) Reconciled {
	mask := ColumnMask(entries, mode)
	res := Reconciled{Mask: mask}

	filtered := make([]core.Entry, len(entries))
	for i, e := range entries {
		kept := make([]decimal.Decimal, 0, len(e.Credits))
		for col, c := range e.Credits {
			if col < len(mask) && mask[col] {
				kept = append(kept, c)
				continue
			}
			if !c.IsZero() {
				res.Discarded = append(res.Discarded, Discarded{
					EntryIndex: i,
					DocumentID: e.DocumentID,
					Column:     col,
					Value:      c,
				})
			}
		}
		ne := e.Clone()
		ne.Credits = kept
		filtered[i] = ne
	}

	res.Entries = Recompute(filtered)
	for i := range entries {
		if !sameEntry(entries[i], res.Entries[i]) {
			res.Changed = true
			break
		}
	}
	return res
}

func sameEntry(a, b core.Entry) bool {
	if len(a.Credits) != len(b.Credits) {
		return false
	}
	for i := range a.Credits {
		if !a.Credits[i].Equal(b.Credits[i]) {
			return false
		}
	}
	return storedEqual(a.DayTotal, b.DayTotal) &&
		storedEqual(a.RunningAmount, b.RunningAmount) &&
		storedEqual(a.MonthlyAverage, b.MonthlyAverage)
}

// storedEqual compares derived amounts at the float64 precision they are
// persisted with, so an unrounded average read back from storage matches
// its recomputed value.
func storedEqual(a, b decimal.Decimal) bool {
	return a.Equal(b) || a.InexactFloat64() == b.InexactFloat64()
}
