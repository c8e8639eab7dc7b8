// Package queue implements the durable work-queue adapter shared by the
// job, scrape-task, and healing-task queues. It generalizes the Redis
// list plumbing in the cache package and the QueueBackend/Job shapes used
// by Redis-backed work queues in the wider ecosystem into a small
// generic enqueue/batch-consume/ack/nack contract.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message wraps a decoded payload with the delivery metadata a processor
// needs to ack or request redelivery.
type Message[T any] struct {
	ID      string
	Payload T
}

// Queue is the at-least-once delivery contract every processor consumes.
// Implementations must be safe for concurrent use by multiple consumers.
type Queue[T any] interface {
	Enqueue(ctx context.Context, payload T) error
	Consume(ctx context.Context, batchSize int) ([]Message[T], error)
	Ack(ctx context.Context, id string) error
	Nack(ctx context.Context, id string, requeue bool) error
	Len(ctx context.Context) (int64, error)
}

type envelope[T any] struct {
	ID      string `json:"id"`
	Payload T      `json:"payload"`
}

// RedisQueue implements Queue on top of a Redis list, using the
// reliable-queue pattern (RPOPLPUSH into a per-consumer processing list)
// so a crashed consumer's in-flight messages can be redelivered.
type RedisQueue[T any] struct {
	client     *redis.Client
	name       string
	mainKey    string
	processKey string
	idSeq      func() string
}

// NewRedisQueue creates a RedisQueue named `name`, backed by the given
// client. idSeq generates message IDs (e.g. clockid.UUIDGenerator.NewID).
func NewRedisQueue[T any](client *redis.Client, name string, idSeq func() string) *RedisQueue[T] {
	return &RedisQueue[T]{
		client:     client,
		name:       name,
		mainKey:    "queue:" + name,
		processKey: "queue:" + name + ":processing",
		idSeq:      idSeq,
	}
}

// Enqueue pushes a new message onto the tail of the queue.
func (q *RedisQueue[T]) Enqueue(ctx context.Context, payload T) error {
	env := envelope[T]{ID: q.idSeq(), Payload: payload}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: marshal %s message: %w", q.name, err)
	}
	if err := q.client.RPush(ctx, q.mainKey, raw).Err(); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", q.name, err)
	}
	return nil
}

// Consume pops up to batchSize messages, moving each into the processing
// list atomically via RPOPLPUSH. Messages remain in the processing list
// until Ack or Nack is called.
func (q *RedisQueue[T]) Consume(ctx context.Context, batchSize int) ([]Message[T], error) {
	var out []Message[T]
	for i := 0; i < batchSize; i++ {
		raw, err := q.client.RPopLPush(ctx, q.mainKey, q.processKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, fmt.Errorf("queue: consume %s: %w", q.name, err)
		}
		var env envelope[T]
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return out, fmt.Errorf("queue: unmarshal %s message: %w", q.name, err)
		}
		out = append(out, Message[T]{ID: env.ID, Payload: env.Payload})
	}
	return out, nil
}

// Ack removes a message from the processing list permanently.
func (q *RedisQueue[T]) Ack(ctx context.Context, id string) error {
	return q.removeFromProcessing(ctx, id)
}

// Nack removes the message from the processing list and, if requeue is
// true, pushes it back onto the main queue for redelivery.
func (q *RedisQueue[T]) Nack(ctx context.Context, id string, requeue bool) error {
	raw, found, err := q.findInProcessing(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := q.removeFromProcessing(ctx, id); err != nil {
		return err
	}
	if requeue {
		if err := q.client.RPush(ctx, q.mainKey, raw).Err(); err != nil {
			return fmt.Errorf("queue: requeue %s message %s: %w", q.name, id, err)
		}
	}
	return nil
}

// Len reports the number of messages currently waiting (not in flight).
func (q *RedisQueue[T]) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.mainKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len %s: %w", q.name, err)
	}
	return n, nil
}

func (q *RedisQueue[T]) findInProcessing(ctx context.Context, id string) (string, bool, error) {
	items, err := q.client.LRange(ctx, q.processKey, 0, -1).Result()
	if err != nil {
		return "", false, fmt.Errorf("queue: scan processing %s: %w", q.name, err)
	}
	for _, raw := range items {
		var env envelope[T]
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		if env.ID == id {
			return raw, true, nil
		}
	}
	return "", false, nil
}

func (q *RedisQueue[T]) removeFromProcessing(ctx context.Context, id string) error {
	raw, found, err := q.findInProcessing(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := q.client.LRem(ctx, q.processKey, 1, raw).Err(); err != nil {
		return fmt.Errorf("queue: ack/nack remove %s message %s: %w", q.name, id, err)
	}
	return nil
}

// MemQueue is an in-memory Queue used in tests and as a local-dev
// fallback. A mutex guards its state, so it is safe for concurrent use.
type MemQueue[T any] struct {
	mu         sync.Mutex
	items      []Message[T]
	processing map[string]Message[T]
	idSeq      func() string
}

// NewMemQueue creates an empty MemQueue.
func NewMemQueue[T any](idSeq func() string) *MemQueue[T] {
	return &MemQueue[T]{processing: make(map[string]Message[T]), idSeq: idSeq}
}

func (q *MemQueue[T]) Enqueue(ctx context.Context, payload T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Message[T]{ID: q.idSeq(), Payload: payload})
	return nil
}

func (q *MemQueue[T]) Consume(ctx context.Context, batchSize int) ([]Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := batchSize
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := q.items[:n]
	q.items = q.items[n:]
	for _, m := range batch {
		q.processing[m.ID] = m
	}
	out := make([]Message[T], len(batch))
	copy(out, batch)
	return out, nil
}

func (q *MemQueue[T]) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, id)
	return nil
}

func (q *MemQueue[T]) Nack(ctx context.Context, id string, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.processing[id]
	if !ok {
		return nil
	}
	delete(q.processing, id)
	if requeue {
		q.items = append(q.items, m)
	}
	return nil
}

func (q *MemQueue[T]) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// defaultTimeout is the bound WithTimeout applies to a single queue
// operation's context.
const defaultTimeout = 5 * time.Second

// WithTimeout returns a context bounded by defaultTimeout, for call sites
// that enqueue a handful of messages and don't want to inherit a caller's
// possibly-unbounded context.
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, defaultTimeout)
}
