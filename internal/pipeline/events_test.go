package pipeline

import (
	"io"
	"log"
	"testing"

	"github.com/ryan258/insight-capsule/internal/domain"
)

func TestRegistryFanOut(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	a, unsubA := r.Subscribe(4)
	b, unsubB := r.Subscribe(4)
	defer unsubA()
	defer unsubB()

	r.Publish(domain.Event{Kind: domain.EventRecordingStarted})
	for name, ch := range map[string]<-chan domain.Event{"a": a, "b": b} {
		ev := <-ch
		if ev.Kind != domain.EventRecordingStarted {
			t.Fatalf("%s got %s", name, ev.Kind)
		}
		if ev.At.IsZero() {
			t.Fatalf("%s event missing timestamp", name)
		}
	}
}

func TestRegistryDropsWhenFull(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	ch, unsub := r.Subscribe(1)
	defer unsub()

	// Second publish must not block even though nobody is draining.
	r.Publish(domain.Event{Kind: domain.EventRecordingStarted})
	r.Publish(domain.Event{Kind: domain.EventRecordingStopped})

	ev := <-ch
	if ev.Kind != domain.EventRecordingStarted {
		t.Fatalf("got %s", ev.Kind)
	}
	select {
	case ev := <-ch:
		t.Fatalf("dropped event delivered: %s", ev.Kind)
	default:
	}
}

func TestRegistryUnsubscribeClosesChannel(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	ch, unsub := r.Subscribe(1)
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	unsub() // idempotent
	r.Publish(domain.Event{Kind: domain.EventComplete})
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	ch, _ := r.Subscribe(1)
	r.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after close")
	}
	late, _ := r.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscription after close not closed immediately")
	}
}
