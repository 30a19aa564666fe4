// Package webhooks delivers run notifications to an HTTP endpoint, signed
// with a shared secret and retried with exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bjorn1004/route-finder/internal/opt"
)

// Event types
const (
	EventRoundImproved = "round.improved"
	EventRunFinished   = "run.finished"
)

type Event struct {
	ID    string    `json:"id"`
	Type  string    `json:"type"`
	RunID string    `json:"runId"`
	TS    time.Time `json:"ts"`
	Data  any       `json:"data"`
}

type Config struct {
	URL         string
	Secret      string
	MaxAttempts int
	QueueSize   int
	Timeout     time.Duration
}

type Publisher struct {
	url         string
	secret      string
	maxAttempts int
	HTTP        *http.Client
	log         *slog.Logger
	// Backoff is the wait before retry attempt n (0-based).
	Backoff func(attempt int) time.Duration

	queue chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		url:         cfg.URL,
		secret:      cfg.Secret,
		maxAttempts: attempts,
		HTTP:        &http.Client{Timeout: timeout},
		log:         log,
		Backoff:     nextBackoff,
		queue:       make(chan Event, size),
	}
}

// Start runs the delivery loop until Close or ctx ends.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-p.queue:
				if !ok {
					return
				}
				if err := p.deliver(ctx, evt); err != nil {
					p.log.Warn("webhook delivery failed", "event", evt.Type, "id", evt.ID, "err", err)
				}
			}
		}
	}()
}

// Emit queues evt without blocking. It reports false when the queue is full.
func (p *Publisher) Emit(evt Event) bool {
	if evt.ID == "" {
		evt.ID = "evt_" + uuid.New().String()
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	select {
	case p.queue <- evt:
		return true
	default:
		p.log.Warn("webhook queue full, dropping event", "event", evt.Type, "run", evt.RunID)
		return false
	}
}

// Close stops accepting events and waits for queued deliveries.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.queue) })
	p.wg.Wait()
}

// Report emits kept rounds, so it can be chained to the search sinks.
func (p *Publisher) Report(_ context.Context, it opt.Iteration) error {
	if !it.Improved {
		return nil
	}
	p.Emit(Event{Type: EventRoundImproved, RunID: it.RunID, Data: map[string]any{
		"worker": it.Worker,
		"round":  it.Round,
		"score":  it.Score,
		"best":   it.Best,
	}})
	return nil
}

func (p *Publisher) deliver(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	var last error
	for attempt := range p.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff(attempt - 1)):
			}
		}
		code, err := p.post(ctx, evt, body)
		if err == nil && code >= 200 && code < 300 {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("status %d", code)
		}
		last = err
	}
	return fmt.Errorf("webhooks: %d attempts: %w", p.maxAttempts, last)
}

func (p *Publisher) post(ctx context.Context, evt Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", evt.Type)
	if p.secret != "" {
		req.Header.Set("X-Signature", SignHMAC(p.secret, body))
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
