package ledger

import (
	"sort"
	"strings"
	"time"

	"acctlog/internal/core"
)

// Group is a set of entries already organized upstream by location and month,
// such as one location's list inside a stored monthly document.
type Group struct {
	Location string
	Year     int
	Month    time.Month
	Entries  []core.Entry
}

type bucketKey struct {
	location string
	year     int
	month    time.Month
}

type bucketer struct {
	order   []bucketKey
	entries map[bucketKey][]core.Entry
}

func newBucketer() *bucketer {
	return &bucketer{entries: map[bucketKey][]core.Entry{}}
}

func (b *bucketer) add(k bucketKey, e core.Entry) {
	if k.location == "" {
		k.location = core.DefaultLocation
	}
	if _, ok := b.entries[k]; !ok {
		b.order = append(b.order, k)
	}
	e = e.Clone()
	e.Location = k.location
	b.entries[k] = append(b.entries[k], e)
}

func (b *bucketer) buckets() []core.MonthlyBucket {
	out := make([]core.MonthlyBucket, 0, len(b.order))
	for _, k := range b.order {
		entries := Recompute(SortByDate(b.entries[k]))
		out = append(out, core.MonthlyBucket{
			Key:       core.BucketKey(k.location, k.year, k.month),
			Location:  k.location,
			Year:      k.year,
			Month:     k.month,
			MonthName: core.MonthName(k.year, k.month),
			Entries:   entries,
			Stats:     MonthlyStats(entries),
		})
	}
	SortBuckets(out)
	return out
}

// FromEntries groups a flat list of entries by location and calendar month.
func FromEntries(entries []core.Entry) []core.MonthlyBucket {
	b := newBucketer()
	for _, e := range entries {
		b.add(bucketKey{location: strings.TrimSpace(e.Location), year: e.Date.Year(), month: e.Date.Month()}, e)
	}
	return b.buckets()
}

// FromGroups builds buckets from upstream groups. The group's location is
// authoritative and replaces each entry's own location. For the same
// underlying entries it yields the same buckets as FromEntries.
func FromGroups(groups []Group) []core.MonthlyBucket {
	b := newBucketer()
	for _, g := range groups {
		k := bucketKey{location: strings.TrimSpace(g.Location), year: g.Year, month: g.Month}
		for _, e := range g.Entries {
			b.add(k, e)
		}
	}
	return b.buckets()
}

// SortBuckets orders buckets most recent month first, then by location.
func SortBuckets(buckets []core.MonthlyBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		return a.Location < b.Location
	})
}

// Buckets filters entries and groups the result, most recent month first.
func Buckets(entries []core.Entry, spec Spec) []core.MonthlyBucket {
	return FromEntries(Apply(entries, spec))
}
