package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which event IDs a consumer group has already
// applied. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add is called only after the handler succeeded.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore serves single-instance deployments and tests.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	expireAt map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		expireAt: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.expireAt[eventID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(deadline) {
		delete(s.expireAt, eventID)
		return false, nil
	}
	return true, nil
}

// Add records eventID and drops every entry that has already expired.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, deadline := range s.expireAt {
		if !now.Before(deadline) {
			delete(s.expireAt, id)
		}
	}
	s.expireAt[eventID] = now.Add(s.ttl)
	return nil
}

// Len counts tracked IDs, expired ones included until the next sweep.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expireAt)
}

// RedisIdempotencyStore shares processed IDs across every instance of a
// consumer group.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore keys entries as prefix+eventID.
func NewRedisIdempotencyStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup %s: %w", eventID, err)
	}
	return n == 1, nil
}

func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	processedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, s.prefix+eventID, processedAt, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency record %s: %w", eventID, err)
	}
	return nil
}

// IdempotentHandler skips events whose ID the store already holds. Events
// without an ID always reach inner. A failing store never blocks delivery.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}
		log := logger.With(
			slog.String("event_id", event.EventID),
			slog.String("event_type", event.EventType),
		)

		seen, err := store.Contains(ctx, event.EventID)
		switch {
		case err != nil:
			log.WarnContext(ctx, "idempotency lookup failed; handling event anyway", slog.String("error", err.Error()))
		case seen:
			ConsumerDuplicates.WithLabelValues(event.EventType).Inc()
			log.DebugContext(ctx, "duplicate event skipped", slog.String("aggregate_id", event.AggregateID))
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if err := store.Add(ctx, event.EventID); err != nil {
			log.WarnContext(ctx, "could not record processed event", slog.String("error", err.Error()))
		}
		return nil
	}
}
