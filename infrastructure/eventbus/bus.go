// Package eventbus provides the in-process channel that decouples the
// synchronous request path from asynchronous evaluation. Delivery is
// at-least-once: a failed handler sees the same event again with an
// incremented attempt counter, so consumers must be idempotent.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelarena/arena/internal/domain"
	"github.com/modelarena/arena/internal/ports"
)

// Default operational settings.
const (
	DefaultQueueSize       = 64
	DefaultMaxAttempts     = 3
	DefaultRedeliveryDelay = 250 * time.Millisecond
)

// Config controls queue capacity and redelivery behavior.
type Config struct {
	// QueueSize is the publish buffer capacity.
	QueueSize int `json:"queue_size" yaml:"queue_size" validate:"min=1"`

	// MaxAttempts bounds deliveries per event. An event whose handler
	// fails on the final attempt is dropped with a log entry.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`

	// RedeliveryDelay is the pause before a failed event is redelivered.
	RedeliveryDelay time.Duration `json:"redelivery_delay" yaml:"redelivery_delay"`
}

// DefaultConfig returns the standard bus settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:       DefaultQueueSize,
		MaxAttempts:     DefaultMaxAttempts,
		RedeliveryDelay: DefaultRedeliveryDelay,
	}
}

// Bus is a buffered in-process event channel with bounded redelivery.
type Bus struct {
	config    Config
	queue     chan domain.EvaluationEvent
	logger    *slog.Logger
	collector ports.MetricsCollector

	mu     sync.Mutex
	closed bool
}

var _ ports.EventBus = (*Bus)(nil)

// NewBus creates a bus. The collector may be nil.
func NewBus(config Config, logger *slog.Logger, collector ports.MetricsCollector) *Bus {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		config:    config,
		queue:     make(chan domain.EvaluationEvent, config.QueueSize),
		logger:    logger.With("component", "event_bus"),
		collector: collector,
	}
}

// Publish enqueues an evaluation event, stamping a stable event id and the
// emission time when absent. It blocks when the queue is full and returns
// ports.ErrBusClosed after Close.
func (b *Bus) Publish(ctx context.Context, event domain.EvaluationEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ports.ErrBusClosed
	}
	b.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	select {
	case b.queue <- event:
	case <-ctx.Done():
		return ctx.Err()
	}

	if b.collector != nil {
		b.collector.RecordGauge("event_queue_depth", float64(len(b.queue)), nil)
	}
	return nil
}

// Run consumes events and invokes the handler until the context is
// canceled or the bus is closed and drained. A handler error triggers
// redelivery of the same event with the attempt counter incremented, up to
// MaxAttempts deliveries.
func (b *Bus) Run(ctx context.Context, handler ports.EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-b.queue:
			if !ok {
				return nil
			}
			b.deliver(ctx, event, handler)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, event domain.EvaluationEvent, handler ports.EventHandler) {
	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		event.Attempt = attempt

		err := handler(ctx, event)
		if err == nil {
			if attempt > 1 && b.collector != nil {
				b.collector.RecordCounter("evaluation_events_total", 1, map[string]string{"status": "redelivered"})
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		b.logger.WarnContext(ctx, "event handler failed",
			"event_id", event.ID,
			"thread_id", event.ThreadID,
			"attempt", attempt,
			"error", err)

		if attempt == b.config.MaxAttempts {
			b.logger.ErrorContext(ctx, "event dropped after max attempts",
				"event_id", event.ID,
				"thread_id", event.ThreadID,
				"attempts", attempt)
			if b.collector != nil {
				b.collector.RecordCounter("evaluation_events_total", 1, map[string]string{"status": "dropped"})
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.config.RedeliveryDelay):
		}
	}
}

// Close stops accepting publishes and lets Run drain the remaining queue.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
}
