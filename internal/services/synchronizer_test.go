package services

import (
	"context"
	"testing"

	"acctlog/internal/ledger"
	"acctlog/internal/log"
	"acctlog/internal/notify"
	"acctlog/internal/store"
	"acctlog/internal/store/memory"
)

func TestSynchronizerDeliversInitialAndLaterSnapshots(t *testing.T) {
	ctx := context.Background()
	s := memory.New([]string{"A"})
	seed(t, s, "A", sep(1), "10", "5", "0")

	sync := NewSynchronizer(s, nil, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sync.Stop()

	if got := len(sync.Entries()); got != 1 {
		t.Fatalf("initial entries = %d, want 1", got)
	}
	if got := len(sync.Locations()); got != 1 {
		t.Fatalf("initial locations = %d, want 1", got)
	}

	seed(t, s, "A", sep(2), "20", "0", "0")
	if got := len(sync.Entries()); got != 2 {
		t.Errorf("entries after write = %d, want 2", got)
	}
	stats := sync.Stats(ledger.Spec{})
	if !stats.RunningAmount.Equal(d("35")) || !stats.MonthlyAverage.Equal(d("17.5")) {
		t.Errorf("stats = %+v, want 35 / 17.5", stats)
	}
	if cols := sync.Columns(); len(cols) != 2 {
		t.Errorf("columns = %d, want 2", len(cols))
	}
}

func TestSynchronizerStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	sync := NewSynchronizer(s, nil, nil, nil)

	calls := 0
	unsub := sync.OnChange(func(View) { calls++ })
	defer unsub()

	for i := 0; i < 3; i++ {
		if err := sync.Start(ctx); err != nil {
			t.Fatalf("Start #%d: %v", i, err)
		}
	}
	calls = 0
	seed(t, s, "A", sep(1), "1")
	if calls != 1 {
		t.Errorf("one write produced %d callbacks, want 1", calls)
	}
}

func TestSynchronizerStopStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	sync := NewSynchronizer(s, nil, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sync.Stop()
	sync.Stop()

	seed(t, s, "A", sep(1), "1")
	if got := len(sync.Entries()); got != 0 {
		t.Errorf("stopped synchronizer applied a snapshot, entries = %d", got)
	}
	if sync.IsRunning() {
		t.Error("synchronizer still running after Stop")
	}

	if err := sync.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer sync.Stop()
	if got := len(sync.Entries()); got != 1 {
		t.Errorf("restart did not deliver the current snapshot, entries = %d", got)
	}
}

func TestSynchronizerIgnoresStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	seed(t, s, "A", sep(1), "1")
	seed(t, s, "A", sep(2), "2")

	sync := NewSynchronizer(s, nil, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sync.Stop()

	current := sync.View().EntryVersion
	sync.applyEntries(store.EntrySnapshot{Version: current - 1})
	if got := len(sync.Entries()); got != 2 {
		t.Errorf("stale snapshot replaced the view, entries = %d", got)
	}
}

// silentStore delivers the first snapshot only, like a backend whose change
// feed lives in another process.
type silentStore struct {
	*memory.Store
}

func (s silentStore) SubscribeEntries(ctx context.Context, fn func(store.EntrySnapshot)) (store.Unsubscribe, error) {
	docs, err := s.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		return nil, err
	}
	fn(store.EntrySnapshot{Version: 1, Documents: docs})
	return func() {}, nil
}

func TestSynchronizerRefreshesOnRemoteEvent(t *testing.T) {
	ctx := context.Background()
	backend := silentStore{memory.New(nil)}
	hub := notify.NewHub(log.Discard())

	sync := NewSynchronizer(backend, hub, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sync.Stop()

	seed(t, backend, "A", sep(1), "1")
	if got := len(sync.Entries()); got != 0 {
		t.Fatalf("silent store pushed a change, entries = %d", got)
	}

	hub.Deliver(ctx, notify.Event{Kind: notify.KindDataChanged, Origin: "other-process"})
	if got := len(sync.Entries()); got != 1 {
		t.Errorf("entries after remote event = %d, want 1", got)
	}
}

func TestSynchronizerBucketsMatchFlatPath(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	seed(t, s, "A", sep(1), "10", "5")
	seed(t, s, "B", sep(2), "20")
	seed(t, s, "A", sep(3), "7")

	sync := NewSynchronizer(s, nil, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sync.Stop()

	floor := d("10")
	specs := []ledger.Spec{{}, {MinAmount: &floor}, {Location: "A"}}
	for _, spec := range specs {
		grouped := sync.Buckets(spec)
		flat := ledger.Buckets(sync.Entries(), spec)
		if len(grouped) != len(flat) {
			t.Fatalf("bucket count %d vs %d", len(grouped), len(flat))
		}
		for i := range grouped {
			if grouped[i].Key != flat[i].Key || len(grouped[i].Entries) != len(flat[i].Entries) {
				t.Errorf("bucket %d: %s/%d vs %s/%d", i,
					grouped[i].Key, len(grouped[i].Entries), flat[i].Key, len(flat[i].Entries))
			}
			g, f := grouped[i].Stats, flat[i].Stats
			if g.Count != f.Count || !g.RunningAmount.Equal(f.RunningAmount) || !g.MonthlyAverage.Equal(f.MonthlyAverage) {
				t.Errorf("bucket %s stats differ: %+v vs %+v", grouped[i].Key, grouped[i].Stats, flat[i].Stats)
			}
		}
	}
}

func TestSynchronizerBucketsMemoizedPerVersion(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	seed(t, s, "A", sep(1), "10")

	sync := NewSynchronizer(s, nil, nil, nil)
	if err := sync.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sync.Stop()

	sync.Buckets(ledger.Spec{})
	first := sync.Buckets(ledger.Spec{})
	if hits := sync.BucketCacheStats().Hits; hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
	if len(first) != 1 || len(first[0].Entries) != 1 {
		t.Fatalf("buckets = %+v", first)
	}

	seed(t, s, "A", sep(2), "5")
	after := sync.Buckets(ledger.Spec{})
	if len(after) != 1 || len(after[0].Entries) != 2 {
		t.Errorf("buckets after write served stale data: %+v", after)
	}
}
