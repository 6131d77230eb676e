package store

import (
	"sync"
	"sync/atomic"
)

type subscription[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Feed fans snapshots out to subscribers. Callbacks run on the publishing
// goroutine, outside the feed's lock. Once an Unsubscribe returns, no new
// delivery to that subscriber starts.
type Feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription[T]
}

// Subscribe registers fn and returns its Unsubscribe.
func (f *Feed[T]) Subscribe(fn func(T)) Unsubscribe {
	_, unsub := f.subscribe(fn)
	return unsub
}

func (f *Feed[T]) subscribe(fn func(T)) (*subscription[T], Unsubscribe) {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = map[int]*subscription[T]{}
	}
	id := f.next
	f.next++
	sub := &subscription[T]{fn: fn}
	sub.active.Store(true)
	f.subs[id] = sub
	f.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			sub.active.Store(false)
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers v to every active subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	subs := make([]*subscription[T], 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.fn(v)
		}
	}
}

// SubscribeWith registers fn, then delivers the value returned by current.
// A change committed in between may reach fn before the initial value, so
// consumers order deliveries by version.
func (f *Feed[T]) SubscribeWith(fn func(T), current func() (T, error)) (Unsubscribe, error) {
	sub, unsub := f.subscribe(fn)
	v, err := current()
	if err != nil {
		unsub()
		return nil, err
	}
	if sub.active.Load() {
		fn(v)
	}
	return unsub, nil
}

// Len reports the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
