package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/kafka"
)

// Recorder consumes events in process.
type Recorder interface {
	Record(event SearchEvent)
}

// CollectorOptions tunes batching.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers search events and publishes them in batches, either
// when a batch fills up or on every flush interval. Track never blocks; when
// the buffer is full the event is dropped.
type Collector struct {
	publisher kafka.Publisher
	sink      Recorder
	opts      CollectorOptions
	eventCh   chan SearchEvent
	done      chan struct{}
	logger    *slog.Logger
}

// NewCollector creates a Collector publishing to p. sink, if not nil,
// receives every tracked event synchronously.
func NewCollector(p kafka.Publisher, sink Recorder, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if p == nil {
		p = kafka.NopPublisher{}
	}
	return &Collector{
		publisher: p,
		sink:      sink,
		opts:      opts,
		eventCh:   make(chan SearchEvent, opts.BufferSize),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publishing loop. It stops when ctx is cancelled or
// Close is called, publishing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
	)
}

// Track queues an event.
func (c *Collector) Track(event SearchEvent) {
	if c.sink != nil {
		c.sink.Record(event)
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the loop after a final flush. Track must not be called
// afterwards.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.opts.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics events", "events", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	final := func() {
	drain:
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					break drain
				}
				batch = append(batch, toKafka(event))
			default:
				break drain
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for len(batch) > 0 {
			n := min(len(batch), c.opts.BatchSize)
			if err := c.publisher.PublishBatch(shutdownCtx, batch[:n]); err != nil {
				c.logger.Error("failed to publish remaining events", "events", len(batch), "error", err)
				return
			}
			batch = batch[n:]
		}
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				final()
				return
			}
			batch = append(batch, toKafka(event))
			if len(batch) >= c.opts.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			final()
			return
		}
	}
}

func toKafka(event SearchEvent) kafka.Event {
	return kafka.Event{Key: event.RequestID, Value: event}
}
