package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
	Subscribe(runID string) chan StatusEvent
	Unsubscribe(runID string, ch chan StatusEvent)
	Publish(runID string, evt StatusEvent)
	Close() error
}

// RedisBroker implements EventBroker over Redis Pub/Sub so observers attached
// to another process see the same status stream.
type RedisBroker struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan StatusEvent]*redis.PubSub
}

func NewRedisBroker(url string, log *slog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisBroker{rdb: rdb, log: log, subs: map[chan StatusEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(runID string) chan StatusEvent {
	ch := make(chan StatusEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(runID))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", "run", runID, "err", err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		for msg := range ps.Channel() {
			var evt StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				select {
				case ch <- evt:
				default:
				}
			}
			b.mu.Unlock()
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(runID string, ch chan StatusEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	if ok {
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(runID string, evt StatusEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(runID), data).Err(); err != nil {
		b.log.Warn("redis publish failed", "run", runID, "err", err)
	}
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(runID string) string { return "run:" + runID }
