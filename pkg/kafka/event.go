package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

// EnvelopeVersion is stamped on every event this package creates.
const EnvelopeVersion = 1

// MetadataActorID is the metadata key carrying the actor that caused the event.
const MetadataActorID = "actor_id"

// Event is the JSON envelope shared by every topic the engine reads or writes.
// Data holds the topic-specific payload.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       EnvelopeVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
		Metadata:      map[string]string{},
	}, nil
}

func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
	return e
}

// WithContext copies the correlation and actor IDs carried by ctx onto the
// event. An explicitly set correlation ID wins.
func (e *Event) WithContext(ctx context.Context) *Event {
	if id := logger.CorrelationIDFromContext(ctx); id != "" && e.CorrelationID == "" {
		e.CorrelationID = id
	}
	if actor := logger.ActorIDFromContext(ctx); actor != "" {
		e.WithMetadata(MetadataActorID, actor)
	}
	return e
}

// Context is the inverse of WithContext, used on the consuming side.
func (e *Event) Context(ctx context.Context) context.Context {
	if e.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, e.CorrelationID)
	}
	if actor := e.Metadata[MetadataActorID]; actor != "" {
		ctx = logger.WithActorID(ctx, actor)
	}
	return ctx
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(raw []byte) (*Event, error) {
	e := new(Event)
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	return e, nil
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
