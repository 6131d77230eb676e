// Package memory is an in-process Store. Every read hands out deep copies.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"acctlog/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu        sync.Mutex
	docs      map[string]store.MonthlyDocument
	locations []store.RawLocation
	entryVer  uint64
	locVer    uint64
	now       func() time.Time

	entryFeed    store.Feed[store.EntrySnapshot]
	locationFeed store.Feed[store.LocationSnapshot]
}

// New returns a store seeded with the named locations.
func New(locations []string) *Store {
	s := &Store{docs: map[string]store.MonthlyDocument{}, now: time.Now}
	for _, name := range dedupe(locations) {
		s.locations = append(s.locations, store.RawLocation{
			store.FieldLocationID:        uuid.NewString(),
			store.FieldLocationName:      name,
			store.FieldLocationCreatedAt: s.now(),
		})
	}
	return s
}

// NewFromFiles seeds locations from base/seed_locations.txt, one per line.
func NewFromFiles(base string) *Store {
	locs := readLines(filepath.Join(base, "seed_locations.txt"))
	if len(locs) == 0 {
		locs = []string{"Default"}
	}
	return New(locs)
}

func (s *Store) Close() error { return nil }

func (s *Store) entrySnapshotLocked() store.EntrySnapshot {
	docs := make([]store.MonthlyDocument, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d.Clone())
	}
	store.SortDocuments(docs)
	return store.EntrySnapshot{Version: s.entryVer, Documents: docs}
}

func (s *Store) locationSnapshotLocked() store.LocationSnapshot {
	locs := make([]store.RawLocation, len(s.locations))
	for i, l := range s.locations {
		locs[i] = l.Clone()
	}
	return store.LocationSnapshot{Version: s.locVer, Locations: locs}
}

func (s *Store) SubscribeEntries(_ context.Context, fn func(store.EntrySnapshot)) (store.Unsubscribe, error) {
	return s.entryFeed.SubscribeWith(fn, func() (store.EntrySnapshot, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.entrySnapshotLocked(), nil
	})
}

func (s *Store) SubscribeLocations(_ context.Context, fn func(store.LocationSnapshot)) (store.Unsubscribe, error) {
	return s.locationFeed.SubscribeWith(fn, func() (store.LocationSnapshot, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.locationSnapshotLocked(), nil
	})
}

// commitEntriesLocked bumps the version and returns the publish step, which
// must run after the lock is released.
func (s *Store) commitEntriesLocked() func() {
	s.entryVer++
	snap := s.entrySnapshotLocked()
	return func() { s.entryFeed.Publish(snap) }
}

func (s *Store) commitLocationsLocked() func() {
	s.locVer++
	snap := s.locationSnapshotLocked()
	return func() { s.locationFeed.Publish(snap) }
}

func (s *Store) WriteEntry(ctx context.Context, locationKey, monthKey string, entry store.RawEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Transport("write entry", err)
	}
	s.mu.Lock()
	doc, ok := s.docs[monthKey]
	if !ok {
		var err error
		if doc, err = store.NewMonthlyDocument(monthKey); err != nil {
			s.mu.Unlock()
			return "", store.Transport("write entry", err)
		}
	} else {
		doc = doc.Clone()
	}
	id := doc.Upsert(locationKey, entry, s.now())
	s.docs[doc.ID] = doc
	publish := s.commitEntriesLocked()
	s.mu.Unlock()
	publish()
	return id, nil
}

func (s *Store) DeleteEntry(ctx context.Context, locationKey, monthKey, entryID string) error {
	if err := ctx.Err(); err != nil {
		return store.Transport("delete entry", err)
	}
	s.mu.Lock()
	doc, ok := s.docs[monthKey]
	if !ok {
		s.mu.Unlock()
		return &store.TransportError{Op: "delete entry", Err: store.ErrNotFound}
	}
	doc = doc.Clone()
	if !doc.Remove(locationKey, entryID, s.now()) {
		s.mu.Unlock()
		return &store.TransportError{Op: "delete entry", Err: store.ErrNotFound}
	}
	s.docs[monthKey] = doc
	publish := s.commitEntriesLocked()
	s.mu.Unlock()
	publish()
	return nil
}

func (s *Store) WriteLocation(ctx context.Context, loc store.RawLocation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Transport("write location", err)
	}
	loc = loc.Clone()
	id := store.LocationID(loc)
	if id == "" {
		id = uuid.NewString()
		loc[store.FieldLocationID] = id
	}
	s.mu.Lock()
	replaced := false
	for i := range s.locations {
		if store.LocationID(s.locations[i]) == id {
			s.locations[i] = loc
			replaced = true
			break
		}
	}
	if !replaced {
		s.locations = append(s.locations, loc)
	}
	publish := s.commitLocationsLocked()
	s.mu.Unlock()
	publish()
	return id, nil
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.Transport("delete location", err)
	}
	s.mu.Lock()
	idx := -1
	for i := range s.locations {
		if store.LocationID(s.locations[i]) == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return &store.TransportError{Op: "delete location", Err: store.ErrNotFound}
	}
	s.locations = append(s.locations[:idx:idx], s.locations[idx+1:]...)
	publish := s.commitLocationsLocked()
	s.mu.Unlock()
	publish()
	return nil
}

func (s *Store) ReadAllMonthlyDocuments(ctx context.Context) ([]store.MonthlyDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Transport("read monthly documents", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entrySnapshotLocked().Documents, nil
}

// PutMonthlyDocument replaces the whole document.
func (s *Store) PutMonthlyDocument(ctx context.Context, doc store.MonthlyDocument) error {
	if err := ctx.Err(); err != nil {
		return store.Transport("put monthly document", err)
	}
	doc = doc.Clone()
	doc.LastUpdated = s.now()
	s.mu.Lock()
	s.docs[doc.ID] = doc
	publish := s.commitEntriesLocked()
	s.mu.Unlock()
	publish()
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
