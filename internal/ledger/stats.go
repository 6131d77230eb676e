// Package ledger holds the pure account log computations: statistics,
// monthly bucketing, filtering, the credit column view and the column
// reconciliation rule. Nothing here performs I/O or mutates its input.
package ledger

import (
	"sort"

	"acctlog/internal/core"

	"github.com/shopspring/decimal"
)

// DayTotal returns cash plus the sum of all credits.
func DayTotal(cash decimal.Decimal, credits []decimal.Decimal) decimal.Decimal {
	return cash.Add(core.Sum(credits))
}

// Average divides total by count. It is zero for an empty set. The result
// is not rounded; use core.FormatAmount for display.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count)))
}

// dateOrder returns the indices of entries sorted ascending by calendar day.
// Ties keep their original order.
func dateOrder(entries []core.Entry) []int {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return core.CompareDay(entries[idx[a]].Date, entries[idx[b]].Date) < 0
	})
	return idx
}

// SortByDate returns copies of entries ordered ascending by calendar day.
func SortByDate(entries []core.Entry) []core.Entry {
	out := make([]core.Entry, 0, len(entries))
	for _, i := range dateOrder(entries) {
		out = append(out, entries[i].Clone())
	}
	return out
}

// MonthlyStats computes the running amount and the monthly average of a set
// of entries. The result does not depend on input order.
func MonthlyStats(entries []core.Entry) core.Stats {
	running := decimal.Zero
	for _, i := range dateOrder(entries) {
		running = running.Add(DayTotal(entries[i].CashAmount, entries[i].Credits))
	}
	return core.Stats{
		Count:          len(entries),
		RunningAmount:  running,
		MonthlyAverage: Average(running, len(entries)),
	}
}

// Recompute returns copies of entries, in their original positions, with the
// derived fields filled in. RunningAmount is the prefix sum of day totals in
// date order; MonthlyAverage is the same final average on every entry.
func Recompute(entries []core.Entry) []core.Entry {
	out := make([]core.Entry, len(entries))
	running := decimal.Zero
	for _, i := range dateOrder(entries) {
		e := entries[i].Clone()
		e.DayTotal = DayTotal(e.CashAmount, e.Credits)
		running = running.Add(e.DayTotal)
		e.RunningAmount = running
		out[i] = e
	}
	avg := Average(running, len(entries))
	for i := range out {
		out[i].MonthlyAverage = avg
	}
	return out
}

// Totals are lifetime aggregates across every entry in scope.
type Totals struct {
	Entries       int
	Total         decimal.Decimal
	Cash          decimal.Decimal
	Credit        decimal.Decimal
	AveragePerDay decimal.Decimal
}

// Lifetime sums cash and credits across all entries.
func Lifetime(entries []core.Entry) Totals {
	t := Totals{Entries: len(entries), Cash: decimal.Zero, Credit: decimal.Zero}
	for _, e := range entries {
		t.Cash = t.Cash.Add(e.CashAmount)
		t.Credit = t.Credit.Add(core.Sum(e.Credits))
	}
	t.Total = t.Cash.Add(t.Credit)
	t.AveragePerDay = Average(t.Total, t.Entries)
	return t
}
