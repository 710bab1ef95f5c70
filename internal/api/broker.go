package api

import (
	"sync"
)

// Event is one fan-out message for SSE and WebSocket subscribers.
type Event struct {
	Type string
	Data map[string]any
}

// Broker is the in-process fan-out used when no Redis is configured.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[topic]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish never blocks; slow subscribers drop events.
func (b *Broker) Publish(topic string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
