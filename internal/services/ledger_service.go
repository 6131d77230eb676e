package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acctlog/internal/core"
	"acctlog/internal/ledger"
	"acctlog/internal/log"
	"acctlog/internal/metrics"
	"acctlog/internal/notify"
	"acctlog/internal/store"

	"github.com/shopspring/decimal"
)

// LedgerBackend is the part of the store the write path needs.
type LedgerBackend interface {
	store.Writer
	store.DocumentStore
}

// LedgerConfig holds configuration for the ledger service
type LedgerConfig struct {
	// EnforceEditWindow rejects updates to entries older than yesterday
	EnforceEditWindow bool
}

// LedgerService validates and persists log entries, locations and columns.
type LedgerService struct {
	store   LedgerBackend
	events  notify.Publisher
	metrics *metrics.Metrics
	logger  *log.Logger
	config  LedgerConfig
	now     func() time.Time
}

// NewLedgerService creates a new ledger service. events and m may be nil.
func NewLedgerService(s LedgerBackend, events notify.Publisher, m *metrics.Metrics, logger *log.Logger, config LedgerConfig) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:   s,
		events:  events,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentLedger),
		config:  config,
		now:     time.Now,
	}
}

// prepare fills defaults, validates and recomputes the day total.
func prepare(e core.Entry) (core.Entry, error) {
	e = e.WithDefaults()
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	e.Date = core.CalendarDay(e.Date)
	e.DayTotal = ledger.DayTotal(e.CashAmount, e.Credits)
	return e, nil
}

// AddLogEntry stores a new entry and returns it with its assigned id.
func (s *LedgerService) AddLogEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	e, err := prepare(e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("add log entry: %w", err)
	}
	e.DocumentID = ""

	id, err := s.store.WriteEntry(ctx, e.Location, e.MonthKey(), store.EncodeEntry(e))
	s.metrics.Write(log.OpAddEntry, err)
	if err != nil {
		return core.Entry{}, fmt.Errorf("add log entry: %w", err)
	}
	e.DocumentID = id

	s.logger.InfoContext(ctx, "Log entry added",
		log.FieldEntryID, id,
		log.FieldBucketKey, e.BucketKey(),
		log.FieldValue, e.DayTotal.String())
	s.changed(ctx, log.OpAddEntry, e.MonthKey())
	return e, nil
}

// UpdateLogEntry replaces an existing entry. When the date or location moves
// the entry to another month or location, the new copy is written before the
// old one is removed; if the removal fails the new copy is rolled back.
func (s *LedgerService) UpdateLogEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.DocumentID == "" {
		return core.Entry{}, fmt.Errorf("update log entry: %w", store.ErrNotFound)
	}
	e, err := prepare(e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update log entry: %w", err)
	}

	ref, raw, err := store.FindEntry(ctx, s.store, e.DocumentID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update log entry: %w", err)
	}
	existing := store.DecodeEntry(raw, ref.LocationKey)
	if s.config.EnforceEditWindow && !core.CanEditEntry(existing.Date, s.now()) {
		return core.Entry{}, fmt.Errorf("update log entry: %w", core.ErrEditWindowClosed)
	}

	monthKey := e.MonthKey()
	_, err = s.store.WriteEntry(ctx, e.Location, monthKey, store.EncodeEntry(e))
	if err == nil && (ref.LocationKey != e.Location || ref.MonthKey != monthKey) {
		if err = s.store.DeleteEntry(ctx, ref.LocationKey, ref.MonthKey, e.DocumentID); err != nil {
			if rbErr := s.store.DeleteEntry(ctx, e.Location, monthKey, e.DocumentID); rbErr != nil {
				s.logger.ErrorContext(ctx, "Failed to roll back moved entry",
					log.FieldEntryID, e.DocumentID,
					log.FieldBucketKey, e.BucketKey(),
					log.FieldError, rbErr)
				err = errors.Join(err, rbErr)
			}
		}
	}
	s.metrics.Write(log.OpUpdateEntry, err)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update log entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Log entry updated",
		log.FieldEntryID, e.DocumentID,
		log.FieldBucketKey, e.BucketKey())
	s.changed(ctx, log.OpUpdateEntry, uniq(ref.MonthKey, monthKey)...)
	return e, nil
}

// DeleteLogEntry removes an entry by id.
func (s *LedgerService) DeleteLogEntry(ctx context.Context, id string) error {
	ref, _, err := store.FindEntry(ctx, s.store, id)
	if err != nil {
		return fmt.Errorf("delete log entry: %w", err)
	}
	err = s.store.DeleteEntry(ctx, ref.LocationKey, ref.MonthKey, id)
	s.metrics.Write(log.OpDeleteEntry, err)
	if err != nil {
		return fmt.Errorf("delete log entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Log entry deleted",
		log.FieldEntryID, id,
		log.FieldMonthKey, ref.MonthKey,
		log.FieldLocation, ref.LocationKey)
	s.changed(ctx, log.OpDeleteEntry, ref.MonthKey)
	return nil
}

// AddLocation stores a new location. A blank display name becomes the name.
func (s *LedgerService) AddLocation(ctx context.Context, l core.Location) (core.Location, error) {
	if err := l.Validate(); err != nil {
		return core.Location{}, fmt.Errorf("add location: %w", err)
	}
	if l.DisplayName == "" {
		l.DisplayName = l.Name
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now().UTC()
	}
	l.ID = ""

	id, err := s.store.WriteLocation(ctx, store.EncodeLocation(l))
	s.metrics.Write(log.OpAddLocation, err)
	if err != nil {
		return core.Location{}, fmt.Errorf("add location: %w", err)
	}
	l.ID = id

	s.logger.InfoContext(ctx, "Location added", log.FieldLocation, l.Name)
	s.changed(ctx, log.OpAddLocation)
	return l, nil
}

// DeleteLocation removes a location record. Entries logged under it are kept.
func (s *LedgerService) DeleteLocation(ctx context.Context, id string) error {
	err := s.store.DeleteLocation(ctx, id)
	s.metrics.Write(log.OpDeleteLocation, err)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	s.logger.InfoContext(ctx, "Location deleted", log.FieldLocation, id)
	s.changed(ctx, log.OpDeleteLocation)
	return nil
}

// AddColumn appends one zero credit to every stored entry, after padding each
// entry to the current column count. It returns the new column count. Each
// monthly document is rewritten once; a failure stops the pass and is returned.
func (s *LedgerService) AddColumn(ctx context.Context) (int, error) {
	docs, err := s.store.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("add column: %w", err)
	}
	count := ledger.ColumnCount(store.Flatten(docs)) + 1

	var touched []string
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("add column: %w", err)
		}
		if len(doc.Entries) == 0 {
			continue
		}
		next := doc.Clone()
		for loc, raws := range next.Entries {
			for i, raw := range raws {
				credits := ledger.NormalizeCredits(store.DecodeCredits(raw[store.FieldCredits]), count)
				raws[i][store.FieldCredits] = encodeCredits(credits)
			}
			next.Entries[loc] = raws
		}
		next.LastUpdated = s.now().UTC()

		err := s.store.PutMonthlyDocument(ctx, next)
		s.metrics.Write(log.OpAddColumn, err)
		if err != nil {
			return 0, fmt.Errorf("add column: %w", err)
		}
		touched = append(touched, doc.ID)
	}

	s.logger.InfoContext(ctx, "Credit column added",
		log.FieldColumn, ledger.NewColumn(count-1).Name,
		log.FieldCount, len(touched))
	if len(touched) > 0 {
		s.changed(ctx, log.OpAddColumn, touched...)
	}
	return count, nil
}

// changed announces a committed write. Publish failures are logged only;
// the write itself already succeeded.
func (s *LedgerService) changed(ctx context.Context, reason string, docs ...string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, notify.DataChanged(reason, docs...)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish data changed event",
			log.FieldOperation, reason,
			log.FieldError, err)
	}
}

func encodeCredits(credits []decimal.Decimal) []any {
	out := make([]any, len(credits))
	for i, c := range credits {
		out[i] = c.InexactFloat64()
	}
	return out
}

func uniq(keys ...string) []string {
	out := keys[:0:0]
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
