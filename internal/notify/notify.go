// Package notify carries "data changed" signals between the components of
// one process and, through relays, between processes.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"acctlog/internal/log"

	"github.com/google/uuid"
)

// KindDataChanged tells listeners to re-read the store.
const KindDataChanged = "data_changed"

// Event is a change notification.
type Event struct {
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
	Documents []string  `json:"documents,omitempty"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
}

// DataChanged builds a data-changed event.
func DataChanged(reason string, documents ...string) Event {
	return Event{Kind: KindDataChanged, Reason: reason, Documents: documents}
}

// Handler receives events.
type Handler func(ctx context.Context, ev Event)

// Publisher sends events somewhere else, such as a message broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub fans events out to local handlers and forwards them to relays. Each
// hub has its own origin id so events coming back from a relay are not
// delivered twice.
type Hub struct {
	origin string
	logger *log.Logger
	now    func() time.Time

	mu     sync.RWMutex
	next   int
	subs   map[int]Handler
	relays []Publisher
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		origin: uuid.NewString(),
		logger: logger.WithComponent(log.ComponentNotify),
		now:    time.Now,
		subs:   map[int]Handler{},
	}
}

// Origin identifies events published by this hub.
func (h *Hub) Origin() string { return h.origin }

// AddRelay forwards every locally published event to p.
func (h *Hub) AddRelay(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relays = append(h.relays, p)
}

// Subscribe registers fn. The returned function removes it and may be called
// more than once.
func (h *Hub) Subscribe(fn Handler) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) handlers() []Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Handler, 0, len(h.subs))
	for _, fn := range h.subs {
		out = append(out, fn)
	}
	return out
}

// Publish delivers ev locally and then to every relay. Local delivery always
// happens; relay failures are returned joined.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if ev.Origin == "" {
		ev.Origin = h.origin
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	for _, fn := range h.handlers() {
		fn(ctx, ev)
	}

	h.mu.RLock()
	relays := append([]Publisher(nil), h.relays...)
	h.mu.RUnlock()

	var errs []error
	for _, r := range relays {
		if err := r.Publish(ctx, ev); err != nil {
			h.logger.WarnContext(ctx, "Failed to relay event",
				log.FieldEventKind, ev.Kind,
				log.FieldError, err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deliver hands an event received from a relay to local handlers only.
// Events this hub published itself are dropped.
func (h *Hub) Deliver(ctx context.Context, ev Event) {
	if ev.Origin == h.origin {
		h.logger.DebugContext(ctx, "Dropping own event", log.FieldEventOrigin, ev.Origin)
		return
	}
	for _, fn := range h.handlers() {
		fn(ctx, ev)
	}
}
