package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventBackendSelected   EventType = "backend_selected"
	EventResponseCompleted EventType = "response_completed"
	EventUpstreamFailed    EventType = "upstream_failed"
	EventNoSelection       EventType = "no_selection"
	EventHealthChanged     EventType = "health_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Backend    string
	Role       string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
}

// BreakerStates reports circuit breaker states keyed by backend URL.
type BreakerStates interface {
	States() map[string]string
}

type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	logger   *slog.Logger
	breakers BreakerStates
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking; the event is dropped when the buffer
// is full. A nil collector ignores every event.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	if event.Role != "" {
		c.metrics.RecordRole(event.Backend, event.Role)
	}

	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Backend)

	case EventBackendSelected:
		c.metrics.RecordBackendSelection(event.Backend)

	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Backend, event.Duration, event.StatusCode)

	case EventUpstreamFailed:
		c.metrics.RecordFailure(event.Backend)

	case EventNoSelection:
		c.metrics.RecordRejection()

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Backend, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// WatchBreakers adds the state of each backend's breaker to snapshots.
// Call it before serving snapshots.
func (c *Collector) WatchBreakers(src BreakerStates) {
	c.breakers = src
}

func (c *Collector) Snapshot(algorithm string) Snapshot {
	snap := c.metrics.Snapshot(algorithm)
	if c.breakers == nil {
		return snap
	}

	for url, state := range c.breakers.States() {
		bm := snap.Backends[url]
		bm.Breaker = state
		snap.Backends[url] = bm
	}
	return snap
}
