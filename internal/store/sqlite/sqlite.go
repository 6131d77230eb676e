// Package sqlite is a Store persisted in a local SQLite database. Each
// monthly document is one row whose entries column holds the nested
// location lists as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"acctlog/internal/log"
	"acctlog/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles from this process.
	mu       sync.Mutex
	entryVer atomic.Uint64
	locVer   atomic.Uint64

	entryFeed    store.Feed[store.EntrySnapshot]
	locationFeed store.Feed[store.LocationSnapshot]
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.WithComponent(log.ComponentStore).With(log.FieldBackend, "sqlite"),
		now:    time.Now,
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanDocument(scan func(dest ...any) error) (store.MonthlyDocument, error) {
	var (
		doc         store.MonthlyDocument
		month       int
		entries     string
		lastUpdated string
	)
	if err := scan(&doc.ID, &doc.Year, &month, &entries, &lastUpdated); err != nil {
		return store.MonthlyDocument{}, err
	}
	doc.Month = time.Month(month)
	doc.Entries = map[string][]store.RawEntry{}
	if err := json.Unmarshal([]byte(entries), &doc.Entries); err != nil {
		return store.MonthlyDocument{}, fmt.Errorf("decode entries of %s: %w", doc.ID, err)
	}
	doc.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated)
	return doc, nil
}

func readDocuments(ctx context.Context, q queryer) ([]store.MonthlyDocument, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, year, month, entries, last_updated FROM monthly_documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query monthly documents: %w", err)
	}
	defer rows.Close()

	var docs []store.MonthlyDocument
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func readDocument(ctx context.Context, q queryer, id string) (store.MonthlyDocument, error) {
	row := q.QueryRowContext(ctx, `SELECT id, year, month, entries, last_updated FROM monthly_documents WHERE id = ?`, id)
	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return store.MonthlyDocument{}, store.ErrNotFound
	}
	return doc, err
}

func writeDocument(ctx context.Context, tx *sql.Tx, doc store.MonthlyDocument) error {
	body, err := json.Marshal(doc.Entries)
	if err != nil {
		return fmt.Errorf("encode entries of %s: %w", doc.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO monthly_documents (id, year, month, entries, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			year = excluded.year,
			month = excluded.month,
			entries = excluded.entries,
			last_updated = excluded.last_updated`,
		doc.ID, doc.Year, int(doc.Month), string(body), doc.LastUpdated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert monthly document %s: %w", doc.ID, err)
	}
	return nil
}

func readLocations(ctx context.Context, q queryer) ([]store.RawLocation, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, display_name, created_at FROM locations ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []store.RawLocation
	for rows.Next() {
		var id, name, display, created string
		if err := rows.Scan(&id, &name, &display, &created); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, store.RawLocation{
			store.FieldLocationID:          id,
			store.FieldLocationName:        name,
			store.FieldLocationDisplayName: display,
			store.FieldLocationCreatedAt:   created,
		})
	}
	return out, rows.Err()
}

// withTx runs fn in a transaction under the process write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) entrySnapshot(ctx context.Context) (store.EntrySnapshot, error) {
	ver := s.entryVer.Load()
	docs, err := readDocuments(ctx, s.db)
	if err != nil {
		return store.EntrySnapshot{}, store.Transport("read monthly documents", err)
	}
	return store.EntrySnapshot{Version: ver, Documents: docs}, nil
}

func (s *Store) locationSnapshot(ctx context.Context) (store.LocationSnapshot, error) {
	ver := s.locVer.Load()
	locs, err := readLocations(ctx, s.db)
	if err != nil {
		return store.LocationSnapshot{}, store.Transport("read locations", err)
	}
	return store.LocationSnapshot{Version: ver, Locations: locs}, nil
}

// publishEntries pushes a fresh snapshot after a committed write. The write
// already succeeded, so a failed re-read is only logged.
func (s *Store) publishEntries(ctx context.Context) {
	s.entryVer.Add(1)
	snap, err := s.entrySnapshot(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read entry snapshot after write", log.FieldError, err.Error())
		return
	}
	s.entryFeed.Publish(snap)
}

func (s *Store) publishLocations(ctx context.Context) {
	s.locVer.Add(1)
	snap, err := s.locationSnapshot(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read location snapshot after write", log.FieldError, err.Error())
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

func (s *Store) WriteEntry(ctx context.Context, locationKey, monthKey string, entry store.RawEntry) (string, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := readDocument(ctx, tx, monthKey)
		if errors.Is(err, store.ErrNotFound) {
			doc, err = store.NewMonthlyDocument(monthKey)
		}
		if err != nil {
			return err
		}
		id = doc.Upsert(locationKey, entry, s.now())
		return writeDocument(ctx, tx, doc)
	})
	if err != nil {
		return "", store.Transport("write entry", err)
	}
	s.logger.DebugContext(ctx, "Entry written",
		log.FieldMonthKey, monthKey,
		log.FieldLocation, locationKey,
		log.FieldEntryID, id)
	s.publishEntries(ctx)
	return id, nil
}

func (s *Store) DeleteEntry(ctx context.Context, locationKey, monthKey, entryID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := readDocument(ctx, tx, monthKey)
		if err != nil {
			return err
		}
		if !doc.Remove(locationKey, entryID, s.now()) {
			return store.ErrNotFound
		}
		return writeDocument(ctx, tx, doc)
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO locations (id, name, display_name, created_at, position)
			VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM locations))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				display_name = excluded.display_name`,
			id, name, display, created.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return "", store.Transport("write location", err)
	}
	s.publishLocations(ctx)
	return id, nil
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return store.Transport("delete location", err)
	}
	s.publishLocations(ctx)
	return nil
}

func (s *Store) ReadAllMonthlyDocuments(ctx context.Context) ([]store.MonthlyDocument, error) {
	docs, err := readDocuments(ctx, s.db)
	if err != nil {
		return nil, store.Transport("read monthly documents", err)
	}
	return docs, nil
}

func (s *Store) PutMonthlyDocument(ctx context.Context, doc store.MonthlyDocument) error {
	doc = doc.Clone()
	doc.LastUpdated = s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return writeDocument(ctx, tx, doc)
	})
	if err != nil {
		return store.Transport("put monthly document", err)
	}
	s.publishEntries(ctx)
	return nil
}
