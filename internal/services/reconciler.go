package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acctlog/internal/core"
	"acctlog/internal/ledger"
	"acctlog/internal/lock"
	"acctlog/internal/log"
	"acctlog/internal/metrics"
	"acctlog/internal/notify"
	"acctlog/internal/store"

	"golang.org/x/sync/singleflight"
)

// ReconcilerConfig holds configuration for the column reconciler
type ReconcilerConfig struct {
	// Mask selects how droppable credit columns are detected (default: first-entry)
	Mask ledger.MaskMode

	// LockKey names the lock held for the duration of a pass (default: acctlog:reconcile)
	LockKey string

	// LockTTL bounds how long a crashed pass can hold the lock (default: 2m)
	LockTTL time.Duration
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Mask:    ledger.MaskFirstEntry,
		LockKey: "acctlog:reconcile",
		LockTTL: 2 * time.Minute,
	}
}

// Report summarizes one reconciliation pass.
type Report struct {
	Documents int
	Updated   int
	Unchanged int
	Failed    int
	Discarded int
	// Skipped is set when another pass held the lock.
	Skipped bool
	// Errors holds one error per failed document.
	Errors []error
	Took   time.Duration
}

// Reconciler removes all-zero credit columns from stored entries and
// rewrites the dependent statistics, one monthly document at a time.
type Reconciler struct {
	store   store.DocumentStore
	events  notify.Publisher
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *log.Logger
	config  ReconcilerConfig
	now     func() time.Time

	group singleflight.Group
}

// NewReconciler creates a new reconciler. events, locker and m may be nil;
// without a locker an in-process lock is used.
func NewReconciler(
	s store.DocumentStore,
	events notify.Publisher,
	locker lock.Locker,
	m *metrics.Metrics,
	logger *log.Logger,
	config ReconcilerConfig,
) *Reconciler {
	if logger == nil {
		logger = log.Discard()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	defaults := DefaultReconcilerConfig()
	if config.LockKey == "" {
		config.LockKey = defaults.LockKey
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	return &Reconciler{
		store:   s,
		events:  events,
		locker:  locker,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentReconcile),
		config:  config,
		now:     time.Now,
	}
}

// ReconcileColumns runs one pass. Concurrent callers in this process share
// the same pass. Per-document failures are logged and counted in the report;
// only a failure to read the documents at all is returned.
func (r *Reconciler) ReconcileColumns(ctx context.Context) (Report, error) {
	v, err, _ := r.group.Do(r.config.LockKey, func() (any, error) {
		return r.run(ctx)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// TriggerInBackground starts a pass without waiting for it. Failures are
// logged at warn level.
func (r *Reconciler) TriggerInBackground(ctx context.Context) {
	go func() {
		report, err := r.ReconcileColumns(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "Background reconciliation failed", log.FieldError, err)
			return
		}
		if report.Failed > 0 {
			r.logger.WarnContext(ctx, "Background reconciliation finished with failures",
				log.FieldCount, report.Failed,
				log.FieldError, errors.Join(report.Errors...))
		}
	}()
}

func (r *Reconciler) run(ctx context.Context) (Report, error) {
	start := r.now()

	release, err := r.locker.Obtain(ctx, r.config.LockKey, r.config.LockTTL)
	switch {
	case errors.Is(err, lock.ErrNotObtained):
		r.logger.InfoContext(ctx, "Reconciliation already running elsewhere, skipping")
		r.metrics.ReconcileRun("skipped", r.now().Sub(start))
		return Report{Skipped: true}, nil
	case err != nil:
		r.logger.WarnContext(ctx, "Failed to obtain reconcile lock, proceeding without it",
			log.FieldError, err)
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.WarnContext(ctx, "Failed to release reconcile lock", log.FieldError, err)
			}
		}()
	}

	docs, err := r.store.ReadAllMonthlyDocuments(ctx)
	if err != nil {
		r.metrics.ReconcileRun("failed", r.now().Sub(start))
		return Report{}, fmt.Errorf("reconcile columns: %w", err)
	}

	report := Report{Documents: len(docs)}
	var updated []string
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		changed, discarded, err := r.reconcileDocument(ctx, doc)
		report.Discarded += discarded
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("document %s: %w", doc.ID, err))
			r.metrics.ReconcileDocument("failed")
			r.logger.WarnContext(ctx, "Failed to reconcile document",
				log.FieldDocument, doc.ID,
				log.FieldError, err)
		case changed:
			report.Updated++
			updated = append(updated, doc.ID)
			r.metrics.ReconcileDocument("updated")
		default:
			report.Unchanged++
			r.metrics.ReconcileDocument("unchanged")
		}
	}
	r.metrics.Discarded(report.Discarded)

	if len(updated) > 0 && r.events != nil {
		if err := r.events.Publish(ctx, notify.DataChanged(log.OpReconcile, updated...)); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish data changed event", log.FieldError, err)
		}
	}

	report.Took = r.now().Sub(start)
	result := "ok"
	if report.Failed > 0 {
		result = "failed"
	}
	r.metrics.ReconcileRun(result, report.Took)
	r.logger.InfoContext(ctx, "Reconciliation finished",
		log.FieldOperation, log.OpReconcile,
		log.FieldMask, r.config.Mask.String(),
		log.FieldCount, report.Updated,
		log.FieldDuration, report.Took.Milliseconds(),
		"failed", report.Failed,
		"discarded", report.Discarded)
	return report, nil
}

// reconcileDocument rewrites doc when any of its locations changed. Unknown
// stored fields of each entry are kept.
func (r *Reconciler) reconcileDocument(ctx context.Context, doc store.MonthlyDocument) (bool, int, error) {
	next := doc.Clone()
	changed := false
	discarded := 0

	for _, loc := range doc.Locations() {
		raws := doc.Entries[loc]
		if r.config.Mask == ledger.MaskFirstEntry && len(raws) > 0 && !store.HasCredits(raws[0]) {
			r.logger.DebugContext(ctx, "First entry has no credits, location left as is",
				log.FieldDocument, doc.ID,
				log.FieldLocation, loc)
			continue
		}
		entries := make([]core.Entry, len(raws))
		for i, raw := range raws {
			entries[i] = store.DecodeEntry(raw, loc)
		}

		res := ledger.ReconcileEntries(entries, r.config.Mask)
		for _, d := range res.Discarded {
			discarded++
			r.logger.WarnContext(ctx, "Non-zero credit discarded by column mask",
				log.FieldDocument, doc.ID,
				log.FieldLocation, loc,
				log.FieldEntryID, d.DocumentID,
				log.FieldColumn, d.Column,
				log.FieldValue, d.Value.String(),
				log.FieldMask, r.config.Mask.String(),
				log.FieldErrorType, log.ErrorTypeConsistency)
		}
		if !res.Changed {
			continue
		}

		changed = true
		rewritten := make([]store.RawEntry, len(res.Entries))
		for i, e := range res.Entries {
			raw := raws[i].Clone()
			for k, v := range store.EncodeEntry(e) {
				raw[k] = v
			}
			rewritten[i] = raw
		}
		next.Entries[loc] = rewritten
	}

	if !changed {
		return false, discarded, nil
	}
	next.LastUpdated = r.now().UTC()
	if err := r.store.PutMonthlyDocument(ctx, next); err != nil {
		return false, discarded, err
	}
	r.logger.DebugContext(ctx, "Document reconciled", log.FieldDocument, doc.ID)
	return true, discarded, nil
}
