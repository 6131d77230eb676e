package sheets

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"acctlog/internal/store"
)

// fakeValues keeps one grid per sheet. Row 1 (index 0) is the header.
type fakeValues struct {
	mu    sync.Mutex
	grids map[string][][]any
	fail  error
	gets  int
}

func newFakeValues() *fakeValues {
	return &fakeValues{grids: map[string][][]any{
		"MonthlyDocuments": {{"id", "year", "month", "entries", "last_updated"}},
		"Locations":        {{"id", "name", "display_name", "created_at"}},
	}}
}

// parse splits "Sheet!A5:E5" into the sheet and the first row number, which
// is 0 for whole-column ranges.
func parse(rng string) (string, int) {
	sheet, cells, _ := strings.Cut(rng, "!")
	start, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return sheet, n
}

func (f *fakeValues) Get(_ context.Context, rng string) ([][]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail != nil {
		return nil, f.fail
	}
	sheet, from := parse(rng)
	grid := f.grids[sheet]
	if from < 1 {
		from = 1
	}
	var out [][]any
	for i := from - 1; i < len(grid); i++ {
		out = append(out, append([]any(nil), grid[i]...))
	}
	return out, nil
}

func (f *fakeValues) Update(_ context.Context, rng string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	sheet, n := parse(rng)
	grid := f.grids[sheet]
	for len(grid) < n {
		grid = append(grid, nil)
	}
	grid[n-1] = rows[0]
	f.grids[sheet] = grid
	return nil
}

func (f *fakeValues) Append(_ context.Context, rng string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	sheet, _ := parse(rng)
	f.grids[sheet] = append(f.grids[sheet], rows...)
	return nil
}

func (f *fakeValues) Clear(_ context.Context, rng string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheet, n := parse(rng)
	if n-1 < len(f.grids[sheet]) {
		f.grids[sheet][n-1] = nil
	}
	return nil
}

func TestWriteEntryCreatesAndUpdatesRow(t *testing.T) {
	api := newFakeValues()
	s := newStore(api, Options{}, nil)
	ctx := context.Background()

	id, err := s.WriteEntry(ctx, "A", "2025-09", store.RawEntry{store.FieldCash: 5.0})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.WriteEntry(ctx, "B", "2025-09", store.RawEntry{store.FieldCash: 6.0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := len(api.grids["MonthlyDocuments"]); got != 2 {
		t.Fatalf("expected header plus one document row, got %d", got)
	}
	docs, err := s.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(docs) != 1 || len(docs[0].Entries) != 2 || docs[0].Year != 2025 {
		t.Fatalf("docs: %+v", docs)
	}
	if store.EntryID(docs[0].Entries["A"][0]) != id {
		t.Fatalf("entry id not stored")
	}
	if err := s.DeleteEntry(ctx, "A", "2025-09", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteEntry(ctx, "A", "2025-10", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPollPublishesOnlyOnChange(t *testing.T) {
	api := newFakeValues()
	s := newStore(api, Options{}, nil)
	ctx := context.Background()

	var snaps []store.EntrySnapshot
	unsub, err := s.SubscribeEntries(ctx, func(snap store.EntrySnapshot) { snaps = append(snaps, snap) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	s.poll(ctx)
	if len(snaps) != 1 {
		t.Fatalf("unchanged sheet should not publish, got %d snapshots", len(snaps))
	}

	// Another process edits the sheet directly.
	api.Append(ctx, "MonthlyDocuments!A:E", [][]any{{"2025-08", 2025.0, 8.0, `{"A":[{"cashamount":3}]}`, ""}})
	s.poll(ctx)
	if len(snaps) != 2 || snaps[1].Version <= snaps[0].Version {
		t.Fatalf("remote change should publish a newer snapshot: %+v", snaps)
	}
	if len(snaps[1].Documents) != 1 || snaps[1].Documents[0].Month != 8 {
		t.Fatalf("snapshot: %+v", snaps[1].Documents)
	}
	s.poll(ctx)
	if len(snaps) != 2 {
		t.Fatalf("second poll without change published again")
	}
}

func TestTransportErrors(t *testing.T) {
	api := newFakeValues()
	api.fail = errors.New("quota exceeded")
	s := newStore(api, Options{}, nil)

	_, err := s.WriteEntry(context.Background(), "A", "2025-09", store.RawEntry{})
	var te *store.TransportError
	if !errors.As(err, &te) || te.Op != "write entry" {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, err := s.SubscribeEntries(context.Background(), func(store.EntrySnapshot) {}); err == nil {
		t.Fatalf("expected subscribe to surface the read failure")
	}
	if s.entryFeed.Len() != 0 {
		t.Fatalf("failed subscribe left a listener behind")
	}
}

func TestLocationsRows(t *testing.T) {
	api := newFakeValues()
	s := newStore(api, Options{}, nil)
	ctx := context.Background()

	id, err := s.WriteLocation(ctx, store.RawLocation{store.FieldLocationName: "Main"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.WriteLocation(ctx, store.RawLocation{store.FieldLocationID: id, store.FieldLocationName: "Main St"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	rows := api.grids["Locations"]
	if len(rows) != 2 || rows[1][1] != "Main St" {
		t.Fatalf("rows: %v", rows)
	}
	if err := s.DeleteLocation(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap, err := s.locationSnapshot(ctx)
	if err != nil || len(snap.Locations) != 0 {
		t.Fatalf("cleared row should be skipped: %+v %v", snap.Locations, err)
	}
}

func TestParseDocumentsBadJSON(t *testing.T) {
	_, _, err := parseDocuments([][]any{{"2025-09", 2025.0, 9.0, "{not json", ""}})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCellFormatting(t *testing.T) {
	row := []any{2025.0, " x ", nil, true}
	want := []string{"2025", "x", "", "true", ""}
	for i, w := range want {
		if got := cell(row, i); got != w {
			t.Errorf("cell %d = %q, want %q", i, got, w)
		}
	}
}
