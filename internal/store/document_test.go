package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUpsertAssignsAndReplaces(t *testing.T) {
	doc, err := NewMonthlyDocument("2025-09")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := time.Now()
	id := doc.Upsert("A", RawEntry{FieldCash: 1.0}, now)
	if id == "" {
		t.Fatalf("expected assigned id")
	}
	again := doc.Upsert("A", RawEntry{FieldDocumentID: id, FieldCash: 2.0}, now)
	if again != id || len(doc.Entries["A"]) != 1 {
		t.Fatalf("expected replace, got %d entries", len(doc.Entries["A"]))
	}
	if doc.Entries["A"][0][FieldCash] != 2.0 {
		t.Fatalf("replace did not take")
	}
	if !doc.LastUpdated.Equal(now) {
		t.Fatalf("last updated")
	}
}

func TestRemoveDropsEmptyLocation(t *testing.T) {
	doc, _ := NewMonthlyDocument("2025-09")
	id := doc.Upsert("A", RawEntry{}, time.Now())
	if doc.Remove("A", "missing", time.Now()) {
		t.Fatalf("unexpected removal")
	}
	if !doc.Remove("A", id, time.Now()) {
		t.Fatalf("expected removal")
	}
	if _, ok := doc.Entries["A"]; ok {
		t.Fatalf("empty location should be dropped")
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc, _ := NewMonthlyDocument("2025-09")
	doc.Upsert("A", RawEntry{FieldCredits: []any{1.0, 2.0}}, time.Now())
	cp := doc.Clone()
	cp.Entries["A"][0][FieldCredits].([]any)[0] = 9.0
	if doc.Entries["A"][0][FieldCredits].([]any)[0] != 1.0 {
		t.Fatalf("clone shares nested credits")
	}
}

func TestNewMonthlyDocumentRejectsBadKey(t *testing.T) {
	if _, err := NewMonthlyDocument("September"); err == nil {
		t.Fatalf("expected error")
	}
}

type docsOnly []MonthlyDocument

func (d docsOnly) ReadAllMonthlyDocuments(context.Context) ([]MonthlyDocument, error) {
	return d, nil
}

func (d docsOnly) PutMonthlyDocument(context.Context, MonthlyDocument) error { return nil }

func TestFindEntry(t *testing.T) {
	doc, _ := NewMonthlyDocument("2025-09")
	id := doc.Upsert("North", RawEntry{FieldCash: 3.0}, time.Now())
	ref, raw, err := FindEntry(context.Background(), docsOnly{doc}, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ref.MonthKey != "2025-09" || ref.LocationKey != "North" || raw[FieldCash] != 3.0 {
		t.Fatalf("ref: %+v raw: %v", ref, raw)
	}
	_, _, err = FindEntry(context.Background(), docsOnly{doc}, "nope")
	var te *TransportError
	if !errors.Is(err, ErrNotFound) || !errors.As(err, &te) {
		t.Fatalf("expected not found transport error, got %v", err)
	}
}
