package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"photocontest/internal/shared/events"
)

const subscriberBuffer = 128

type busMetrics struct {
	published      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	handlerFailed  *prometheus.CounterVec
	handlerSuccess *prometheus.CounterVec
}

func newBusMetrics(registry prometheus.Registerer) *busMetrics {
	if registry == nil {
		return nil
	}
	factory := promauto.With(registry)
	return &busMetrics{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Events published per topic.",
		}, []string{"topic"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Subsystem: "bus",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		}, []string{"topic"}),
		handlerFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Subsystem: "bus",
			Name:      "handler_failures_total",
			Help:      "Consumer handler errors per topic and consumer group.",
		}, []string{"topic", "consumer_group"}),
		handlerSuccess: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest",
			Subsystem: "bus",
			Name:      "handled_total",
			Help:      "Events handled without error per topic and consumer group.",
		}, []string{"topic", "consumer_group"}),
	}
}

// Bus is an in-process publish/subscribe event bus. Each subscription gets a
// buffered channel; events for a full subscriber are dropped and counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	wg          sync.WaitGroup
	metrics     *busMetrics
	logger      *slog.Logger
}

// NewBus builds a bus. A nil registry disables bus metrics.
func NewBus(registry prometheus.Registerer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]chan events.Envelope),
		metrics:     newBusMetrics(registry),
		logger:      logger,
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, event events.Envelope) error {
	b.mu.RLock()
	subs := append([]chan events.Envelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			if b.metrics != nil {
				b.metrics.dropped.WithLabelValues(topic).Inc()
			}
			b.logger.Warn("dropping event for slow subscriber",
				"event", "bus_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}

	if b.metrics != nil {
		b.metrics.published.WithLabelValues(topic).Inc()
	}
	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

// Subscribe starts one consumer goroutine for topic. It stops when ctx is
// cancelled; Wait blocks until every consumer has stopped.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
) error {
	ch := make(chan events.Envelope, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				b.dispatch(ctx, topic, consumerGroup, handler, event)
			}
		}
	}()
	return nil
}

func (b *Bus) dispatch(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, events.Envelope) error,
	event events.Envelope,
) {
	if err := handler(ctx, event); err != nil {
		if b.metrics != nil {
			b.metrics.handlerFailed.WithLabelValues(topic, consumerGroup).Inc()
		}
		b.logger.Error("consumer handler failed",
			"event", "bus_consume_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"consumer_group", consumerGroup,
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return
	}
	if b.metrics != nil {
		b.metrics.handlerSuccess.WithLabelValues(topic, consumerGroup).Inc()
	}
}

func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) removeSubscriber(topic string, target chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
