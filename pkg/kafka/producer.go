package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys stamped on every published message.
const (
	HeaderEventType     = "event_type"
	HeaderSource        = "source"
	HeaderCorrelationID = "correlation_id"
	HeaderActorID       = "actor_id"
)

var errNoBrokers = errors.New("kafka: no brokers configured")

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Async        bool
}

// DefaultProducerConfig favours latency over throughput: stock events are
// published one at a time from inside request handling.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// MessageWriter is the subset of *kafka.Writer used by producers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes Event envelopes.
type Producer struct {
	writer  MessageWriter
	brokers []string
	logger  *slog.Logger
}

func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Async:        cfg.Async,
			RequiredAcks: kafka.RequireAll,
		},
		brokers: cfg.Brokers,
		logger:  logger,
	}
}

// NewProducerWithWriter creates a producer over an existing writer.
func NewProducerWithWriter(w MessageWriter, logger *slog.Logger) *Producer {
	return &Producer{writer: w, logger: logger}
}

// Publish writes event to topic keyed by its aggregate ID, so every event of
// one stock unit or transaction keeps its order within a partition.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) (err error) {
	start := time.Now()
	defer func() {
		outcome := OutcomePublished
		if err != nil {
			outcome = OutcomeError
		}
		ProducerMessages.WithLabelValues(topic, outcome).Inc()
		ProducerPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	msg, err := message(ctx, topic, event)
	if err != nil {
		return err
	}

	if err = p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "kafka publish failed",
			slog.String("topic", topic),
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %s to %s: %w", event.EventType, topic, err)
	}

	p.logger.DebugContext(ctx, "kafka event published",
		slog.String("topic", topic),
		slog.String("event_type", event.EventType),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func message(ctx context.Context, topic string, event *Event) (kafka.Message, error) {
	value, err := event.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.EventType, err)
	}

	headers := make([]kafka.Header, 0, 6)
	add := func(k, v string) {
		if v != "" {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}
	add(HeaderEventType, event.EventType)
	add(HeaderSource, event.Source)
	add(HeaderCorrelationID, event.CorrelationID)
	add(HeaderActorID, event.Metadata[MetadataActorID])
	InjectTraceContext(ctx, &headers)

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(event.AggregateID),
		Value:   value,
		Headers: headers,
		Time:    event.Timestamp,
	}, nil
}

// Ping reports whether any configured broker answers a metadata request.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers succeeds as soon as one broker answers. When none does, the
// returned error joins every broker's failure.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errNoBrokers
	}

	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		if err := pingBroker(ctx, addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: %w", errors.Join(errs...))
}

func pingBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Brokers()
	return err
}

// Close flushes pending messages and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
