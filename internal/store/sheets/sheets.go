// Package sheets is a Store hosted in a Google Sheets spreadsheet.
//
// The documents sheet holds one row per monthly document:
//
//	A id | B year | C month | D entries (JSON) | E last updated (RFC 3339)
//
// The locations sheet holds one row per location:
//
//	A id | B name | C display name | D created at (RFC 3339)
//
// Row 1 of each sheet is a header. Sheets has no change stream, so Watch
// polls both ranges and publishes a snapshot only when their content changes.
package sheets

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"acctlog/internal/log"
	"acctlog/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

// Options configures the spreadsheet layout and polling.
type Options struct {
	SpreadsheetID   string
	DocumentsSheet  string
	LocationsSheet  string
	CredentialsJSON []byte
	PollInterval    time.Duration
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.DocumentsSheet) == "" {
		o.DocumentsSheet = "MonthlyDocuments"
	}
	if strings.TrimSpace(o.LocationsSheet) == "" {
		o.LocationsSheet = "Locations"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 15 * time.Second
	}
	return o
}

type Store struct {
	api    valuesAPI
	opts   Options
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	hashMu   sync.Mutex
	docHash  [32]byte
	locHash  [32]byte
	entryVer atomic.Uint64
	locVer   atomic.Uint64

	entryFeed    store.Feed[store.EntrySnapshot]
	locationFeed store.Feed[store.LocationSnapshot]
}

// New connects to the spreadsheet with service account credentials.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts.CredentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	api, err := newGoogleValues(ctx, opts.SpreadsheetID, opts.CredentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newStore(api, opts, logger), nil
}

func newStore(api valuesAPI, opts Options, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		api:    api,
		opts:   opts.withDefaults(),
		logger: logger.WithComponent(log.ComponentSheets).With(log.FieldBackend, "sheets"),
		now:    time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) docRange() string { return s.opts.DocumentsSheet + "!A2:E" }
func (s *Store) locRange() string { return s.opts.LocationsSheet + "!A2:D" }

func (s *Store) docRow(n int) string {
	return fmt.Sprintf("%s!A%d:E%d", s.opts.DocumentsSheet, n, n)
}

func (s *Store) locRow(n int) string {
	return fmt.Sprintf("%s!A%d:D%d", s.opts.LocationsSheet, n, n)
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func hashRows(rows [][]any) [32]byte {
	b, _ := json.Marshal(rows)
	return sha256.Sum256(b)
}

// parseDocuments converts sheet rows, returning the sheet row number of each
// document alongside it. Blank rows are skipped.
func parseDocuments(rows [][]any) ([]store.MonthlyDocument, []int, error) {
	var docs []store.MonthlyDocument
	var rowNums []int
	for i, row := range rows {
		id := cell(row, 0)
		if id == "" {
			continue
		}
		year, _ := strconv.Atoi(cell(row, 1))
		month, _ := strconv.Atoi(cell(row, 2))
		doc := store.MonthlyDocument{ID: id, Year: year, Month: time.Month(month), Entries: map[string][]store.RawEntry{}}
		if body := cell(row, 3); body != "" {
			if err := json.Unmarshal([]byte(body), &doc.Entries); err != nil {
				return nil, nil, fmt.Errorf("decode entries of %s: %w", id, err)
			}
		}
		doc.LastUpdated, _ = time.Parse(time.RFC3339Nano, cell(row, 4))
		docs = append(docs, doc)
		rowNums = append(rowNums, i+2)
	}
	return docs, rowNums, nil
}

func documentRow(doc store.MonthlyDocument) ([]any, error) {
	body, err := json.Marshal(doc.Entries)
	if err != nil {
		return nil, fmt.Errorf("encode entries of %s: %w", doc.ID, err)
	}
	return []any{doc.ID, doc.Year, int(doc.Month), string(body), doc.LastUpdated.UTC().Format(time.RFC3339Nano)}, nil
}

func parseLocations(rows [][]any) ([]store.RawLocation, []int) {
	var out []store.RawLocation
	var rowNums []int
	for i, row := range rows {
		id := cell(row, 0)
		if id == "" {
			continue
		}
		out = append(out, store.RawLocation{
			store.FieldLocationID:          id,
			store.FieldLocationName:        cell(row, 1),
			store.FieldLocationDisplayName: cell(row, 2),
			store.FieldLocationCreatedAt:   cell(row, 3),
		})
		rowNums = append(rowNums, i+2)
	}
	return out, rowNums
}

func (s *Store) readDocuments(ctx context.Context) ([]store.MonthlyDocument, []int, [32]byte, error) {
	rows, err := s.api.Get(ctx, s.docRange())
	if err != nil {
		return nil, nil, [32]byte{}, err
	}
	docs, nums, err := parseDocuments(rows)
	return docs, nums, hashRows(rows), err
}

func (s *Store) readLocations(ctx context.Context) ([]store.RawLocation, []int, [32]byte, error) {
	rows, err := s.api.Get(ctx, s.locRange())
	if err != nil {
		return nil, nil, [32]byte{}, err
	}
	locs, nums := parseLocations(rows)
	return locs, nums, hashRows(rows), nil
}

func (s *Store) entrySnapshot(ctx context.Context) (store.EntrySnapshot, error) {
	docs, _, sum, err := s.readDocuments(ctx)
	if err != nil {
		return store.EntrySnapshot{}, store.Transport("read monthly documents", err)
	}
	s.hashMu.Lock()
	s.docHash = sum
	s.hashMu.Unlock()
	return store.EntrySnapshot{Version: s.entryVer.Load(), Documents: docs}, nil
}

func (s *Store) locationSnapshot(ctx context.Context) (store.LocationSnapshot, error) {
	locs, _, sum, err := s.readLocations(ctx)
	if err != nil {
		return store.LocationSnapshot{}, store.Transport("read locations", err)
	}
	s.hashMu.Lock()
	s.locHash = sum
	s.hashMu.Unlock()
	return store.LocationSnapshot{Version: s.locVer.Load(), Locations: locs}, nil
}

func (s *Store) publishEntries(ctx context.Context) {
	s.entryVer.Add(1)
	snap, err := s.entrySnapshot(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read entry snapshot after change", log.FieldError, err.Error())
		return
	}
	s.entryFeed.Publish(snap)
}

func (s *Store) publishLocations(ctx context.Context) {
	s.locVer.Add(1)
	snap, err := s.locationSnapshot(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read location snapshot after change", log.FieldError, err.Error())
		return
	}
	s.locationFeed.Publish(snap)
}

func (s *Store) SubscribeEntries(ctx context.Context, fn func(store.EntrySnapshot)) (store.Unsubscribe, error) {
	return s.entryFeed.SubscribeWith(fn, func() (store.EntrySnapshot, error) { return s.entrySnapshot(ctx) })
}

func (s *Store) SubscribeLocations(ctx context.Context, fn func(store.LocationSnapshot)) (store.Unsubscribe, error) {
	return s.locationFeed.SubscribeWith(fn, func() (store.LocationSnapshot, error) { return s.locationSnapshot(ctx) })
}

// mutateDocument reads monthKey, applies fn and writes the row back.
func (s *Store) mutateDocument(ctx context.Context, monthKey string, create bool, fn func(*store.MonthlyDocument) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, rows, _, err := s.readDocuments(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i := range docs {
		if docs[i].ID == monthKey {
			idx = i
			break
		}
	}
	var doc store.MonthlyDocument
	switch {
	case idx >= 0:
		doc = docs[idx]
	case create:
		if doc, err = store.NewMonthlyDocument(monthKey); err != nil {
			return err
		}
	default:
		return store.ErrNotFound
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.putLocked(ctx, doc, idx, rows)
}

func (s *Store) putLocked(ctx context.Context, doc store.MonthlyDocument, idx int, rows []int) error {
	row, err := documentRow(doc)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return s.api.Update(ctx, s.docRow(rows[idx]), [][]any{row})
	}
	return s.api.Append(ctx, s.opts.DocumentsSheet+"!A:E", [][]any{row})
}

func (s *Store) WriteEntry(ctx context.Context, locationKey, monthKey string, entry store.RawEntry) (string, error) {
	var id string
	err := s.mutateDocument(ctx, monthKey, true, func(doc *store.MonthlyDocument) error {
		id = doc.Upsert(locationKey, entry, s.now())
		return nil
	})
	if err != nil {
		return "", store.Transport("write entry", err)
	}
	s.publishEntries(ctx)
	return id, nil
}

func (s *Store) DeleteEntry(ctx context.Context, locationKey, monthKey, entryID string) error {
	err := s.mutateDocument(ctx, monthKey, false, func(doc *store.MonthlyDocument) error {
		if !doc.Remove(locationKey, entryID, s.now()) {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return store.Transport("delete entry", err)
	}
	s.publishEntries(ctx)
	return nil
}

func (s *Store) WriteLocation(ctx context.Context, loc store.RawLocation) (string, error) {
	id := store.LocationID(loc)
	if id == "" {
		id = uuid.NewString()
	}
	name, _ := loc[store.FieldLocationName].(string)
	display, _ := loc[store.FieldLocationDisplayName].(string)
	created := store.DecodeTime(loc[store.FieldLocationCreatedAt])
	if created.IsZero() {
		created = s.now()
	}
	row := []any{id, name, display, created.UTC().Format(time.RFC3339Nano)}

	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		locs, rows, _, err := s.readLocations(ctx)
		if err != nil {
			return err
		}
		for i := range locs {
			if store.LocationID(locs[i]) == id {
				return s.api.Update(ctx, s.locRow(rows[i]), [][]any{row})
			}
		}
		return s.api.Append(ctx, s.opts.LocationsSheet+"!A:D", [][]any{row})
	}()
	if err != nil {
		return "", store.Transport("write location", err)
	}
	s.publishLocations(ctx)
	return id, nil
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		locs, rows, _, err := s.readLocations(ctx)
		if err != nil {
			return err
		}
		for i := range locs {
			if store.LocationID(locs[i]) == id {
				return s.api.Clear(ctx, s.locRow(rows[i]))
			}
		}
		return store.ErrNotFound
	}()
	if err != nil {
		return store.Transport("delete location", err)
	}
	s.publishLocations(ctx)
	return nil
}

func (s *Store) ReadAllMonthlyDocuments(ctx context.Context) ([]store.MonthlyDocument, error) {
	docs, _, _, err := s.readDocuments(ctx)
	if err != nil {
		return nil, store.Transport("read monthly documents", err)
	}
	return docs, nil
}

func (s *Store) PutMonthlyDocument(ctx context.Context, doc store.MonthlyDocument) error {
	doc = doc.Clone()
	doc.LastUpdated = s.now()
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		docs, rows, _, err := s.readDocuments(ctx)
		if err != nil {
			return err
		}
		idx := -1
		for i := range docs {
			if docs[i].ID == doc.ID {
				idx = i
				break
			}
		}
		return s.putLocked(ctx, doc, idx, rows)
	}()
	if err != nil {
		return store.Transport("put monthly document", err)
	}
	s.publishEntries(ctx)
	return nil
}
