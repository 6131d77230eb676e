package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"acctlog/internal/core"
	"acctlog/internal/notify"
	"acctlog/internal/store"
	"acctlog/internal/store/memory"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sep(day int) time.Time { return core.NewDay(2025, time.September, day) }

// seed writes one entry straight into the store, bypassing the service.
func seed(t *testing.T, s store.Writer, loc string, day time.Time, cash string, credits ...string) string {
	t.Helper()
	e := core.Entry{Date: day, CashAmount: d(cash), Location: loc}
	for _, c := range credits {
		e.Credits = append(e.Credits, d(c))
	}
	id, err := s.WriteEntry(context.Background(), loc, e.MonthKey(), store.EncodeEntry(e))
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return id
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var errInjected = errors.New("injected failure")

// faultyStore fails selected writes of an otherwise working memory store.
type faultyStore struct {
	*memory.Store
	failPut    map[string]bool
	failDelete map[string]bool
	failRead   bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:      memory.New(nil),
		failPut:    map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (f *faultyStore) PutMonthlyDocument(ctx context.Context, doc store.MonthlyDocument) error {
	if f.failPut[doc.ID] {
		return store.Transport("put monthly document", errInjected)
	}
	return f.Store.PutMonthlyDocument(ctx, doc)
}

func (f *faultyStore) DeleteEntry(ctx context.Context, loc, month, id string) error {
	if f.failDelete[loc+"/"+month] {
		return store.Transport("delete entry", errInjected)
	}
	return f.Store.DeleteEntry(ctx, loc, month, id)
}

func (f *faultyStore) ReadAllMonthlyDocuments(ctx context.Context) ([]store.MonthlyDocument, error) {
	if f.failRead {
		return nil, store.Transport("read monthly documents", errInjected)
	}
	return f.Store.ReadAllMonthlyDocuments(ctx)
}

func document(t *testing.T, s store.DocumentStore, id string) (store.MonthlyDocument, bool) {
	t.Helper()
	docs, err := s.ReadAllMonthlyDocuments(context.Background())
	if err != nil {
		t.Fatalf("read documents: %v", err)
	}
	for _, doc := range docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return store.MonthlyDocument{}, false
}
