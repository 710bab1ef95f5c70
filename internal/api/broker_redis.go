package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
	Publish(topic string, evt Event)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so multiple API
// replicas share one event stream.
type RedisBroker struct {
	rdb *redis.Client

	mu  sync.Mutex
	sub map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), sub: map[chan Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// initial receive confirms the subscription
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.sub[ch] = ps
	b.mu.Unlock()
	go func() {
		// sole closer of ch: the pubsub channel closes when Unsubscribe calls
		// ps.Close(), which ends this loop
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	ps := b.sub[ch]
	delete(b.sub, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(topic), data).Err()
}

func (b *RedisBroker) chanName(topic string) string { return "ecomap:" + topic }
