package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicPrefix is the standard prefix for all ERP Kafka topics.
const TopicPrefix = "erp"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// MaxRetries bounds handler attempts per message. Zero means 3.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries. Zero means 100ms.
	RetryBackoff time.Duration
	// IsRetryable reports whether a handler error is worth retrying. Nil retries everything.
	IsRetryable func(error) bool
}

// MessageReader is the subset of *kafka.Reader used by consumers.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps the kafka-go reader for consuming events.
type Consumer struct {
	reader    MessageReader
	topic     string
	group     string
	cfg       ConsumerConfig
	logger    *slog.Logger
	handler   Handler
	dlq       *DLQProducer
	closeOnce sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg, handler, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Consumer{
		reader:  r,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}
}

// WithDLQ routes messages that exhaust their retries to dlq instead of dropping them.
func (c *Consumer) WithDLQ(dlq *DLQProducer) *Consumer {
	c.dlq = dlq
	return c
}

// Start begins consuming messages. It blocks until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if !c.process(ctx, msg) {
			return c.Close()
		}
	}
}

// process handles one message and commits it. It returns false only when ctx
// was canceled mid-retry, leaving the message uncommitted for redelivery.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ConsumerMessages.WithLabelValues(c.topic, c.group, OutcomeReceived).Inc()

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
		)
		c.fail(ctx, msg, err)
		return true
	}

	hctx := event.Context(ExtractTraceContext(ctx, msg.Headers))
	start := time.Now()
	lastErr := c.handle(hctx, msg, event)
	ConsumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return false
	}

	if lastErr != nil {
		c.logger.ErrorContext(hctx, "handler failed, giving up on message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		c.fail(ctx, msg, lastErr)
		return true
	}

	ConsumerMessages.WithLabelValues(c.topic, c.group, OutcomeProcessed).Inc()
	c.commit(ctx, msg)
	return true
}

// handle runs the handler with linear backoff between attempts.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, event *Event) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.handler(ctx, event)
		if lastErr == nil {
			return nil
		}
		if c.cfg.IsRetryable != nil && !c.cfg.IsRetryable(lastErr) {
			return lastErr
		}

		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.cfg.MaxRetries),
		)

		if attempt < c.cfg.MaxRetries {
			ConsumerRetries.WithLabelValues(c.topic, c.group).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}
	}
	return lastErr
}

// fail records a message that will not be processed, dead-letters it when a
// DLQ is configured and commits it so the partition keeps moving.
func (c *Consumer) fail(ctx context.Context, msg kafka.Message, cause error) {
	ConsumerMessages.WithLabelValues(c.topic, c.group, OutcomeFailed).Inc()
	if c.dlq != nil {
		_ = c.dlq.Publish(ctx, msg, cause, c.group)
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
