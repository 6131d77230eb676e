package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"acctlog/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "acctlog.db")
	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestStore(t)
	v, dirty, err := MigrationVersion(path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 || dirty {
		t.Fatalf("expected clean version 1, got %d dirty=%v", v, dirty)
	}
	// Running again is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}
}

func TestEntryRoundTripAndSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var snaps []store.EntrySnapshot
	unsub, err := s.SubscribeEntries(ctx, func(snap store.EntrySnapshot) { snaps = append(snaps, snap) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	id, err := s.WriteEntry(ctx, "North", "2025-09", store.RawEntry{
		store.FieldDate:    "2025-09-02",
		store.FieldCash:    12.5,
		store.FieldCredits: []any{1.0, 0.0},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected initial and post-write snapshots, got %d", len(snaps))
	}

	docs, err := s.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "2025-09" || docs[0].Year != 2025 || docs[0].Month != 9 {
		t.Fatalf("docs: %+v", docs)
	}
	entries := store.DocumentEntries(docs[0])
	if len(entries) != 1 || entries[0].DocumentID != id || entries[0].CashAmount.String() != "12.5" || len(entries[0].Credits) != 2 {
		t.Fatalf("entries: %+v", entries)
	}

	// Replace in place.
	if _, err := s.WriteEntry(ctx, "North", "2025-09", store.RawEntry{store.FieldDocumentID: id, store.FieldCash: 3.0}); err != nil {
		t.Fatalf("update: %v", err)
	}
	docs, _ = s.ReadAllMonthlyDocuments(ctx)
	if got := docs[0].Entries["North"]; len(got) != 1 || got[0][store.FieldCash] != 3.0 {
		t.Fatalf("replace: %+v", got)
	}

	if err := s.DeleteEntry(ctx, "North", "2025-09", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteEntry(ctx, "North", "2025-09", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteEntry(ctx, "North", "1999-01", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for a missing document, got %v", err)
	}
}

func TestPutMonthlyDocumentReplacesWhole(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := s.WriteEntry(ctx, "A", "2025-08", store.RawEntry{store.FieldCash: 1.0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, _ := store.NewMonthlyDocument("2025-08")
	doc.Upsert("B", store.RawEntry{store.FieldCash: 2.0}, doc.LastUpdated)
	if err := s.PutMonthlyDocument(ctx, doc); err != nil {
		t.Fatalf("put: %v", err)
	}
	docs, _ := s.ReadAllMonthlyDocuments(ctx)
	if _, ok := docs[0].Entries["A"]; ok {
		t.Fatalf("whole-document put should drop location A")
	}
	if docs[0].LastUpdated.IsZero() {
		t.Fatalf("last updated not stored")
	}
}

func TestLocations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var last store.LocationSnapshot
	unsub, err := s.SubscribeLocations(ctx, func(snap store.LocationSnapshot) { last = snap })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	first, err := s.WriteLocation(ctx, store.RawLocation{store.FieldLocationName: "Main"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.WriteLocation(ctx, store.RawLocation{store.FieldLocationName: "Annex", store.FieldLocationDisplayName: "The Annex"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(last.Locations) != 2 || last.Locations[0][store.FieldLocationName] != "Main" {
		t.Fatalf("locations in insertion order: %+v", last.Locations)
	}
	if err := s.DeleteLocation(ctx, first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(last.Locations) != 1 || last.Version < 3 {
		t.Fatalf("after delete: %+v", last)
	}
	if err := s.DeleteLocation(ctx, first); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRollbackMigrations(t *testing.T) {
	s, path := newTestStore(t)
	s.Close()
	if err := RollbackMigrations(path); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	v, _, err := MigrationVersion(path)
	if err != nil || v != 0 {
		t.Fatalf("expected version 0 after rollback, got %d (%v)", v, err)
	}
}
