package usecase

import (
	"sync"

	"voicenotes/internal/domain"
)

// eventBus fans session events out to subscribers so the core never holds
// a UI-side function reference. Delivery is non-blocking: a subscriber
// that falls behind loses events rather than stalling the pipeline.
type eventBus struct {
	mu   sync.Mutex
	subs map[int]chan domain.Event
	next int
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan domain.Event)}
}

// subscribe registers a listener and returns its channel plus an
// unsubscribe function. Unsubscribing closes the channel.
func (b *eventBus) subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan domain.Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *eventBus) publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}
