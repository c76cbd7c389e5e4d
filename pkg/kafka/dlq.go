package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix prefixes every dead-letter topic: erp.dlq.<source topic>.
const DLQTopicPrefix = TopicPrefix + ".dlq"

// Headers added to a dead-lettered message next to its original headers.
const (
	HeaderDLQOriginalTopic     = "dlq.original_topic"
	HeaderDLQOriginalPartition = "dlq.original_partition"
	HeaderDLQOriginalOffset    = "dlq.original_offset"
	HeaderDLQConsumerGroup     = "dlq.consumer_group"
	HeaderDLQError             = "dlq.error"
	HeaderDLQFailedAt          = "dlq.failed_at"
)

// DLQProducer parks order events that exhausted their retries or were
// rejected outright, so operators can replay them by hand.
type DLQProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewDLQProducer writes synchronously, one message per batch.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return NewDLQProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}, logger)
}

func NewDLQProducerWithWriter(w MessageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger}
}

func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

func deadLetter(msg kafka.Message, cause error, group string, at time.Time) kafka.Message {
	headers := append(make([]kafka.Header, 0, len(msg.Headers)+6), msg.Headers...)
	set := func(k, v string) { headers = append(headers, kafka.Header{Key: k, Value: []byte(v)}) }
	set(HeaderDLQOriginalTopic, msg.Topic)
	set(HeaderDLQOriginalPartition, strconv.Itoa(msg.Partition))
	set(HeaderDLQOriginalOffset, strconv.FormatInt(msg.Offset, 10))
	set(HeaderDLQConsumerGroup, group)
	set(HeaderDLQFailedAt, at.UTC().Format(time.RFC3339))
	if cause != nil {
		set(HeaderDLQError, cause.Error())
	}
	return kafka.Message{Topic: DLQTopic(msg.Topic), Key: msg.Key, Value: msg.Value, Headers: headers}
}

// Publish copies msg to its dead-letter topic unchanged, recording where it
// came from and why it failed in headers.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, cause error, consumerGroup string) error {
	parked := deadLetter(msg, cause, consumerGroup, time.Now())
	log := d.logger.With(
		slog.String("dlq_topic", parked.Topic),
		slog.String("original_topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("consumer_group", consumerGroup),
	)

	if err := d.writer.WriteMessages(ctx, parked); err != nil {
		log.ErrorContext(ctx, "dead-letter publish failed", slog.String("error", err.Error()))
		return fmt.Errorf("publish to DLQ %s: %w", parked.Topic, err)
	}

	ConsumerMessages.WithLabelValues(msg.Topic, consumerGroup, OutcomeDeadLettered).Inc()
	log.WarnContext(ctx, "message dead-lettered")
	return nil
}

func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
