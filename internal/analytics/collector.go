package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/kafka"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

// Collector buffers search events and publishes them in batches. Recording
// never blocks the query path: when the buffer is full the event is dropped
// with a warning.
type Collector struct {
	producer   *kafka.Producer
	eventCh    chan SearchEvent
	logger     *slog.Logger
	done       chan struct{}
	batchSize  int
	flushEvery time.Duration
}

func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer:   producer,
		eventCh:    make(chan SearchEvent, bufferSize),
		logger:     logger.WithComponent("analytics"),
		done:       make(chan struct{}),
		batchSize:  100,
		flushEvery: time.Second,
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, flushing buffered events on the way out.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushEvery)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := c.producer.PublishBatch(context.Background(), batch); err != nil {
				c.logger.Error("publishing analytics batch failed", "count", len(batch), "error", err)
			}
			batch = batch[:0]
		}

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					flush()
					return
				}
				batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
				if len(batch) >= c.batchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			case <-ctx.Done():
				c.drainInto(&batch)
				flush()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Record queues one event for publishing without blocking.
func (c *Collector) Record(event SearchEvent) {
	if c == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the collector after flushing whatever is buffered.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainInto(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: string(event.Type), Value: event})
		default:
			return
		}
	}
}
