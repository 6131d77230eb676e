package store

import (
	"sort"
	"time"

	"acctlog/internal/core"

	"github.com/google/uuid"
)

// NewMonthlyDocument returns an empty document for monthKey.
func NewMonthlyDocument(monthKey string) (MonthlyDocument, error) {
	year, month, err := core.ParseMonthKey(monthKey)
	if err != nil {
		return MonthlyDocument{}, err
	}
	return MonthlyDocument{
		ID:      core.MonthKey(year, month),
		Year:    year,
		Month:   month,
		Entries: map[string][]RawEntry{},
	}, nil
}

// Clone deep-copies the document.
func (d MonthlyDocument) Clone() MonthlyDocument {
	out := d
	out.Entries = make(map[string][]RawEntry, len(d.Entries))
	for loc, list := range d.Entries {
		cp := make([]RawEntry, len(list))
		for i, raw := range list {
			cp[i] = raw.Clone()
		}
		out.Entries[loc] = cp
	}
	return out
}

// Locations returns the location keys in sorted order.
func (d MonthlyDocument) Locations() []string {
	keys := make([]string, 0, len(d.Entries))
	for k := range d.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Upsert replaces the entry with the same documentId or appends it. It
// returns the entry id, assigning one when missing.
func (d *MonthlyDocument) Upsert(location string, raw RawEntry, now time.Time) string {
	if d.Entries == nil {
		d.Entries = map[string][]RawEntry{}
	}
	raw = raw.Clone()
	id := EntryID(raw)
	if id == "" {
		id = uuid.NewString()
		raw[FieldDocumentID] = id
	}
	list := d.Entries[location]
	replaced := false
	for i := range list {
		if EntryID(list[i]) == id {
			list[i] = raw
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, raw)
	}
	d.Entries[location] = list
	d.LastUpdated = now
	return id
}

// Remove deletes the entry with id from location. It reports whether an
// entry was removed. A location left empty is dropped from the document.
func (d *MonthlyDocument) Remove(location, id string, now time.Time) bool {
	list := d.Entries[location]
	for i := range list {
		if EntryID(list[i]) != id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(d.Entries, location)
		} else {
			d.Entries[location] = list
		}
		d.LastUpdated = now
		return true
	}
	return false
}

// Clone deep-copies the entry, including nested lists and maps.
func (r RawEntry) Clone() RawEntry {
	if r == nil {
		return nil
	}
	out := make(RawEntry, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone copies the location record.
func (l RawLocation) Clone() RawLocation {
	if l == nil {
		return nil
	}
	out := make(RawLocation, len(l))
	for k, v := range l {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, x := range t {
			cp[k] = cloneValue(x)
		}
		return cp
	default:
		return v
	}
}

// EntryID returns the stored documentId, or "".
func EntryID(r RawEntry) string {
	s, _ := r[FieldDocumentID].(string)
	return s
}

// LocationID returns the stored id, or "".
func LocationID(l RawLocation) string {
	s, _ := l[FieldLocationID].(string)
	return s
}

// SortDocuments orders documents by id ascending.
func SortDocuments(docs []MonthlyDocument) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
