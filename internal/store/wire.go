package store

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"acctlog/internal/core"
	"acctlog/internal/ledger"

	"github.com/shopspring/decimal"
)

type toDater interface{ ToDate() time.Time }
type asTimer interface{ AsTime() time.Time }

// DecodeTime normalizes a stored date. It accepts time values, objects with a
// ToDate or AsTime conversion, RFC 3339 or YYYY-MM-DD strings, unix seconds
// and {"seconds": n} maps. Anything else yields the zero time.
func DecodeTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case toDater:
		return t.ToDate()
	case asTimer:
		return t.AsTime()
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
		if ts, err := time.Parse(core.DayLayout, s); err == nil {
			return ts
		}
	case float64:
		if !math.IsNaN(t) && !math.IsInf(t, 0) {
			return time.Unix(int64(t), 0).UTC()
		}
	case int64:
		return time.Unix(t, 0).UTC()
	case int:
		return time.Unix(int64(t), 0).UTC()
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	case map[string]any:
		secs := DecodeAmount(firstPresent(t, "seconds", "_seconds"))
		nanos := DecodeAmount(firstPresent(t, "nanoseconds", "_nanoseconds"))
		if !secs.IsZero() || !nanos.IsZero() {
			return time.Unix(secs.IntPart(), nanos.IntPart()).UTC()
		}
	}
	return time.Time{}
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// DecodeAmount normalizes a stored number. Missing or unparseable values are
// zero, never NaN.
func DecodeAmount(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case float32:
		return DecodeAmount(float64(t))
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case int32:
		return decimal.NewFromInt(int64(t))
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return d
		}
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// DecodeCredits normalizes a stored credits field. A scalar becomes a
// one-element list; a missing field becomes an empty list.
func DecodeCredits(v any) []decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return []decimal.Decimal{}
	case []any:
		out := make([]decimal.Decimal, len(t))
		for i, x := range t {
			out[i] = DecodeAmount(x)
		}
		return out
	case []float64:
		out := make([]decimal.Decimal, len(t))
		for i, x := range t {
			out[i] = DecodeAmount(x)
		}
		return out
	case []decimal.Decimal:
		return append([]decimal.Decimal{}, t...)
	default:
		return []decimal.Decimal{DecodeAmount(t)}
	}
}

// HasCredits reports whether the stored credits field is set to anything
// other than null, false, zero or the empty string. An empty list counts as
// set.
func HasCredits(raw RawEntry) bool {
	switch t := raw[FieldCredits].(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64, float32, int, int32, int64, json.Number, decimal.Decimal:
		return !DecodeAmount(t).IsZero()
	default:
		return true
	}
}

// DecodeEntry converts a stored entry into the model. location is the key the
// entry was stored under and wins over the entry's own location field, which
// is only used when location is blank.
func DecodeEntry(raw RawEntry, location string) core.Entry {
	loc := location
	if strings.TrimSpace(loc) == "" {
		loc, _ = raw[FieldLocation].(string)
	}
	name, _ := raw[FieldEmployee].(string)
	e := core.Entry{
		DocumentID:     EntryID(raw),
		Date:           DecodeTime(raw[FieldDate]),
		CashAmount:     DecodeAmount(raw[FieldCash]),
		Credits:        DecodeCredits(raw[FieldCredits]),
		Location:       loc,
		EmployeeName:   name,
		DayTotal:       DecodeAmount(raw[FieldDayTotal]),
		RunningAmount:  DecodeAmount(raw[FieldRunningAmount]),
		MonthlyAverage: DecodeAmount(raw[FieldMonthlyAverage]),
	}
	return e.WithDefaults()
}

// EncodeEntry converts an entry into its stored shape. Amounts are written as
// float64, which represents two-place values exactly on the way back.
func EncodeEntry(e core.Entry) RawEntry {
	cr := make([]any, len(e.Credits))
	for i, c := range e.Credits {
		cr[i] = c.InexactFloat64()
	}
	loc := e.Location
	if strings.TrimSpace(loc) == "" {
		loc = core.DefaultLocation
	}
	raw := RawEntry{
		FieldDate:           e.Date,
		FieldCash:           e.CashAmount.InexactFloat64(),
		FieldCredits:        cr,
		FieldLocation:       loc,
		FieldEmployee:       e.EmployeeName,
		FieldDayTotal:       e.DayTotal.InexactFloat64(),
		FieldRunningAmount:  e.RunningAmount.InexactFloat64(),
		FieldMonthlyAverage: e.MonthlyAverage.InexactFloat64(),
	}
	if e.DocumentID != "" {
		raw[FieldDocumentID] = e.DocumentID
	}
	return raw
}

// DecodeLocation converts a stored location record.
func DecodeLocation(raw RawLocation) core.Location {
	name, _ := raw[FieldLocationName].(string)
	display, _ := raw[FieldLocationDisplayName].(string)
	return core.Location{
		ID:          LocationID(raw),
		Name:        name,
		DisplayName: display,
		CreatedAt:   DecodeTime(raw[FieldLocationCreatedAt]),
	}
}

// EncodeLocation converts a location into its stored shape.
func EncodeLocation(l core.Location) RawLocation {
	raw := RawLocation{
		FieldLocationName:        l.Name,
		FieldLocationDisplayName: l.DisplayName,
		FieldLocationCreatedAt:   l.CreatedAt,
	}
	if l.ID != "" {
		raw[FieldLocationID] = l.ID
	}
	return raw
}

// DocumentEntries decodes every entry of doc in stored order, location by
// location in sorted key order.
func DocumentEntries(doc MonthlyDocument) []core.Entry {
	var out []core.Entry
	for _, loc := range doc.Locations() {
		for _, raw := range doc.Entries[loc] {
			out = append(out, DecodeEntry(raw, loc))
		}
	}
	return out
}

// Flatten decodes every entry of every document.
func Flatten(docs []MonthlyDocument) []core.Entry {
	var out []core.Entry
	for _, doc := range docs {
		out = append(out, DocumentEntries(doc)...)
	}
	return out
}

// Groups exposes documents as pre-grouped ledger input.
func Groups(docs []MonthlyDocument) []ledger.Group {
	var out []ledger.Group
	for _, doc := range docs {
		year, month := doc.Year, doc.Month
		if year == 0 || month == 0 {
			if y, m, err := core.ParseMonthKey(doc.ID); err == nil {
				year, month = y, m
			}
		}
		for _, loc := range doc.Locations() {
			g := ledger.Group{Location: loc, Year: year, Month: month}
			for _, raw := range doc.Entries[loc] {
				g.Entries = append(g.Entries, DecodeEntry(raw, loc))
			}
			out = append(out, g)
		}
	}
	return out
}

// Locations decodes a location snapshot.
func Locations(raws []RawLocation) []core.Location {
	out := make([]core.Location, 0, len(raws))
	for _, raw := range raws {
		out = append(out, DecodeLocation(raw))
	}
	return out
}
