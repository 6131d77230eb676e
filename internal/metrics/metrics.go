// Package metrics exposes Prometheus counters for store writes, sync
// snapshots and column reconciliation. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acctlog"

type Metrics struct {
	registry *prometheus.Registry

	writes             *prometheus.CounterVec
	snapshots          *prometheus.CounterVec
	reconcileRuns      *prometheus.CounterVec
	reconcileDocuments *prometheus.CounterVec
	discardedCredits   prometheus.Counter
	reconcileDuration  prometheus.Histogram
}

// New registers every collector on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Write operations against the document store by operation and result.",
		}, []string{"op", "result"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_snapshots_total",
			Help:      "Snapshots applied to the live projection by stream.",
		}, []string{"stream"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Column reconciliation passes by result.",
		}, []string{"result"}),
		reconcileDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_documents_total",
			Help:      "Monthly documents visited by reconciliation by outcome.",
		}, []string{"outcome"}),
		discardedCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_discarded_credits_total",
			Help:      "Non-zero credit values dropped by the column mask.",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of column reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.writes,
		m.snapshots,
		m.reconcileRuns,
		m.reconcileDocuments,
		m.discardedCredits,
		m.reconcileDuration,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Write records one store write.
func (m *Metrics) Write(op string, err error) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op, result(err)).Inc()
}

// Snapshot records one applied snapshot on stream ("entries" or "locations").
func (m *Metrics) Snapshot(stream string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(stream).Inc()
}

// ReconcileRun records a finished pass. result is "ok", "failed" or "skipped".
func (m *Metrics) ReconcileRun(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(took.Seconds())
}

// ReconcileDocument records one document outcome: "updated", "unchanged" or "failed".
func (m *Metrics) ReconcileDocument(outcome string) {
	if m == nil {
		return
	}
	m.reconcileDocuments.WithLabelValues(outcome).Inc()
}

// Discarded records non-zero credit values lost to the column mask.
func (m *Metrics) Discarded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.discardedCredits.Add(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
