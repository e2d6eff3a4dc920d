package usecase

import (
	"testing"

	"voicenotes/internal/domain"
)

func TestEventBusFansOut(t *testing.T) {
	t.Parallel()

	bus := newEventBus()
	first, cancelFirst := bus.subscribe()
	second, cancelSecond := bus.subscribe()
	defer cancelSecond()

	bus.publish(domain.Event{Type: domain.EventWarning, Warning: "heads up"})

	for _, ch := range []<-chan domain.Event{first, second} {
		event := <-ch
		if event.Type != domain.EventWarning || event.Warning != "heads up" {
			t.Fatalf("unexpected event: %+v", event)
		}
	}

	cancelFirst()
	if _, open := <-first; open {
		t.Fatalf("unsubscribe must close the channel")
	}

	// Cancelling twice is safe.
	cancelFirst()

	bus.publish(domain.Event{Type: domain.EventWarning, Warning: "again"})
	if event := <-second; event.Warning != "again" {
		t.Fatalf("remaining subscriber missed event: %+v", event)
	}
}

func TestEventBusNeverBlocksOnSlowSubscriber(t *testing.T) {
	t.Parallel()

	bus := newEventBus()
	ch, cancel := bus.subscribe()
	defer cancel()

	// Flood well past the buffer; publish must not stall.
	for i := 0; i < 200; i++ {
		bus.publish(domain.Event{Type: domain.EventWarning})
	}

	if len(ch) != cap(ch) {
		t.Fatalf("expected a full buffer, got %d of %d", len(ch), cap(ch))
	}
}
