package monitor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler receives events synchronously. Handlers must not block; slow
// work belongs in the handler's own goroutine.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is an ordered observer list
type Bus struct {
	log *zap.SugaredLogger

	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log.Named("bus").Sugar()}
}

// Subscribe registers fn and returns a function that removes it
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every handler in subscription order. A panicking handler
// is logged and does not stop delivery to the others.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.fn, ev)
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("[Bus] handler panicked on %s: %v", ev.Name(), fmt.Sprint(r))
		}
	}()
	fn(ev)
}

// Clear removes every handler
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len returns the number of handlers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
