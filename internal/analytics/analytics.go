// Package analytics publishes search events to Kafka for offline analysis
// of query patterns and result quality. Publication is strictly best
// effort: a full buffer or a broker outage drops events and never slows
// down or fails a search request.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackseek/stackseek/pkg/config"
	"github.com/stackseek/stackseek/pkg/kafka"
	"github.com/stackseek/stackseek/pkg/logger"
)

// SearchEvent records one completed search request.
type SearchEvent struct {
	RequestID  string    `json:"request_id"`
	Query      string    `json:"query"`
	Outcome    string    `json:"outcome"`
	Source     string    `json:"source"`
	Results    int       `json:"results"`
	TopDocID   int64     `json:"top_doc_id,omitempty"`
	TopScore   float64   `json:"top_score,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Collector buffers search events and ships them to Kafka in batches from
// a background goroutine. A nil Collector is valid and records nothing,
// which is how the service runs when Kafka is disabled.
type Collector struct {
	producer *kafka.Producer
	events   chan SearchEvent
	done     chan struct{}
	logger   *slog.Logger
}

const (
	bufferSize    = 1024
	batchSize     = 100
	flushInterval = 5 * time.Second
)

// NewCollector creates a Collector and starts its background publisher.
// Returns nil when Kafka is disabled in config.
func NewCollector(cfg config.KafkaConfig) *Collector {
	if !cfg.Enabled {
		return nil
	}
	c := &Collector{
		producer: kafka.NewProducer(cfg, cfg.AnalyticsTopic),
		events:   make(chan SearchEvent, bufferSize),
		done:     make(chan struct{}),
		logger:   logger.WithComponent("analytics"),
	}
	go c.run()
	return c
}

// Record enqueues an event, dropping it if the buffer is full.
func (c *Collector) Record(event SearchEvent) {
	if c == nil {
		return
	}
	select {
	case c.events <- event:
	default:
		c.logger.Debug("event buffer full, dropping event", "query", event.Query)
	}
}

func (c *Collector) run() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.producer.PublishBatch(ctx, batch); err != nil {
			c.logger.Warn("dropping analytics batch", "count", len(batch), "error", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				flush()
				close(c.done)
				return
			}
			batch = append(batch, kafka.Event{Key: event.Query, Value: event})
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes buffered events and shuts the publisher down.
func (c *Collector) Close() error {
	if c == nil {
		return nil
	}
	close(c.events)
	<-c.done
	return c.producer.Close()
}
