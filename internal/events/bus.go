package events

import (
	"context"
	"sync"
)

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id   uint64
	kind Kind // empty matches every kind
	fn   Handler
}

// Bus is a synchronous publish/subscribe bus. Handlers run on the publisher's
// goroutine in subscription order, mirroring DOM event dispatch.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of the given kind. An empty kind
// subscribes to every event. The returned function removes the subscription
// and is safe to call more than once.
func (b *Bus) Subscribe(kind Kind, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kind: kind, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every matching subscriber. Subscribers may publish or
// unsubscribe from inside a handler.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == e.Kind() {
			matched = append(matched, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range matched {
		fn(e)
	}
}

// On subscribes a typed handler. The event kind is taken from T's zero value.
func On[T Event](b *Bus, fn func(T)) (unsubscribe func()) {
	var zero T
	return b.Subscribe(zero.Kind(), func(e Event) {
		if v, ok := e.(T); ok {
			fn(v)
		}
	})
}

// Stream returns a channel receiving every event published for partition
// until ctx is done. Events are dropped when the consumer falls more than
// buffer events behind; the channel is closed after ctx is done.
func (b *Bus) Stream(ctx context.Context, partition string, buffer int) <-chan Event {
	ch := make(chan Event, buffer)

	var mu sync.Mutex
	closed := false
	unsubscribe := b.Subscribe("", func(e Event) {
		if e.PartitionID() != partition {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
