package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"acctlog/internal/cache"
	"acctlog/internal/core"
	"acctlog/internal/ledger"
	"acctlog/internal/log"
	"acctlog/internal/metrics"
	"acctlog/internal/notify"
	"acctlog/internal/store"
)

// SyncBackend is the part of the store the synchronizer reads from.
type SyncBackend interface {
	store.Subscriber
	store.DocumentStore
}

// View is the synchronizer's projection of the store at a point in time.
type View struct {
	EntryVersion    uint64
	LocationVersion uint64
	Documents       []store.MonthlyDocument
	Entries         []core.Entry
	Locations       []core.Location
	UpdatedAt       time.Time
}

// Synchronizer keeps a live, decoded projection of the store's entries and
// locations, fed by the store's push subscriptions.
type Synchronizer struct {
	store   SyncBackend
	hub     *notify.Hub
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time

	mu        sync.RWMutex
	view      View
	running   bool
	unsubs    []func()
	listeners store.Feed[View]
	buckets   *cache.LRUCache[[]core.MonthlyBucket]
}

const bucketCacheSize = 64

// NewSynchronizer creates a new synchronizer. hub and m may be nil.
func NewSynchronizer(s SyncBackend, hub *notify.Hub, m *metrics.Metrics, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Synchronizer{
		store:   s,
		hub:     hub,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentSync),
		now:     time.Now,
		buckets: cache.NewLRUCache[[]core.MonthlyBucket](bucketCacheSize),
	}
}

// Start subscribes to both store streams and, when a hub is set, to data
// changed events. Calling Start on a running synchronizer is a no-op.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	var unsubs []func()
	fail := func(err error) error {
		for _, u := range unsubs {
			u()
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	unsubEntries, err := s.store.SubscribeEntries(ctx, s.applyEntries)
	if err != nil {
		return fail(fmt.Errorf("subscribe entries: %w", err))
	}
	unsubs = append(unsubs, unsubEntries)

	unsubLocations, err := s.store.SubscribeLocations(ctx, s.applyLocations)
	if err != nil {
		return fail(fmt.Errorf("subscribe locations: %w", err))
	}
	unsubs = append(unsubs, unsubLocations)

	if s.hub != nil {
		unsubs = append(unsubs, s.hub.Subscribe(s.onEvent))
	}

	s.mu.Lock()
	s.unsubs = unsubs
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Synchronizer started", log.FieldOperation, log.OpSubscribe)
	return nil
}

// Stop releases every subscription. No callbacks are delivered afterwards.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	unsubs := s.unsubs
	s.unsubs = nil
	s.running = false
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	s.logger.Info("Synchronizer stopped")
}

// IsRunning returns whether the synchronizer is subscribed
func (s *Synchronizer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Refresh re-reads every monthly document and applies the result at the
// entry version seen before the read, so a snapshot pushed meanwhile wins.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.RLock()
	version := s.view.EntryVersion
	s.mu.RUnlock()

	docs, err := s.store.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	s.applyEntries(store.EntrySnapshot{Version: version, Documents: docs})
	s.logger.DebugContext(ctx, "Projection refreshed",
		log.FieldOperation, log.OpRefresh,
		log.FieldCount, len(docs))
	return nil
}

func (s *Synchronizer) onEvent(ctx context.Context, ev notify.Event) {
	if ev.Kind != notify.KindDataChanged {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh after data changed",
			log.FieldEventOrigin, ev.Origin,
			log.FieldError, err)
	}
}

func (s *Synchronizer) applyEntries(snap store.EntrySnapshot) {
	entries := store.Flatten(snap.Documents)

	s.mu.Lock()
	if !s.running || snap.Version < s.view.EntryVersion {
		s.mu.Unlock()
		return
	}
	s.view.EntryVersion = snap.Version
	s.view.Documents = snap.Documents
	s.view.Entries = entries
	s.view.UpdatedAt = s.now()
	view := s.view
	s.mu.Unlock()

	s.buckets.Purge()

	s.metrics.Snapshot("entries")
	s.listeners.Publish(view)
}

func (s *Synchronizer) applyLocations(snap store.LocationSnapshot) {
	locations := store.Locations(snap.Locations)

	s.mu.Lock()
	if !s.running || snap.Version < s.view.LocationVersion {
		s.mu.Unlock()
		return
	}
	s.view.LocationVersion = snap.Version
	s.view.Locations = locations
	s.view.UpdatedAt = s.now()
	view := s.view
	s.mu.Unlock()

	s.metrics.Snapshot("locations")
	s.listeners.Publish(view)
}

// OnChange registers fn for every applied snapshot.
func (s *Synchronizer) OnChange(fn func(View)) func() {
	return s.listeners.Subscribe(fn)
}

// View returns the current projection. Slices are shared and must not be
// modified.
func (s *Synchronizer) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Entries returns a copy of every known entry.
func (s *Synchronizer) Entries() []core.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Entry, len(s.view.Entries))
	for i, e := range s.view.Entries {
		out[i] = e.Clone()
	}
	return out
}

// Locations returns a copy of every known location.
func (s *Synchronizer) Locations() []core.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Location(nil), s.view.Locations...)
}

// Buckets groups the projection by location and month, most recent first,
// using the documents' own grouping, then applies spec. Results are memoized
// per entry version and must not be modified.
func (s *Synchronizer) Buckets(spec ledger.Spec) []core.MonthlyBucket {
	s.mu.RLock()
	docs := s.view.Documents
	key := fmt.Sprintf("%d/%s", s.view.EntryVersion, spec.Key())
	s.mu.RUnlock()

	if b, ok := s.buckets.Get(key); ok {
		return b
	}
	b := ledger.FilterBuckets(ledger.FromGroups(store.Groups(docs)), spec)
	s.buckets.Set(key, b)
	return b
}

// BucketCacheStats reports how often Buckets was served from memory.
func (s *Synchronizer) BucketCacheStats() cache.Stats {
	return s.buckets.Stats()
}

// Columns returns the credit columns of the projection.
func (s *Synchronizer) Columns() []core.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.Columns(s.view.Entries)
}

// Stats returns the statistics of the entries matching spec.
func (s *Synchronizer) Stats(spec ledger.Spec) core.Stats {
	return ledger.MonthlyStats(ledger.Apply(s.Entries(), spec))
}
