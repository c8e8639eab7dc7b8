package queue

import (
	"context"
	"strconv"
	"testing"
)

type sample struct {
	Value string
}

func newSeq() func() string {
	n := 0
	return func() string {
		n++
		return "msg-" + strconv.Itoa(n)
	}
}

func TestMemQueueEnqueueConsumeAck(t *testing.T) {
	q := NewMemQueue[sample](newSeq())
	ctx := context.Background()

	if err := q.Enqueue(ctx, sample{Value: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, sample{Value: "b"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	msgs, err := q.Consume(ctx, 10)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if err := q.Ack(ctx, msgs[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty main queue after consume, got %d", n)
	}
}

func TestMemQueueNackRequeue(t *testing.T) {
	q := NewMemQueue[sample](newSeq())
	ctx := context.Background()

	if err := q.Enqueue(ctx, sample{Value: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	if err := q.Nack(ctx, msgs[0].ID, true); err != nil {
		t.Fatalf("nack: %v", err)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected message back on main queue, got len %d", n)
	}

	redelivered, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(redelivered) != 1 || redelivered[0].Payload.Value != "a" {
		t.Fatalf("expected redelivered payload a, got %+v", redelivered)
	}
}

func TestMemQueueNackWithoutRequeueDrops(t *testing.T) {
	q := NewMemQueue[sample](newSeq())
	ctx := context.Background()

	if err := q.Enqueue(ctx, sample{Value: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if err := q.Nack(ctx, msgs[0].ID, false); err != nil {
		t.Fatalf("nack: %v", err)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected message to stay dropped, got len %d", n)
	}
}

func TestMemQueueConsumeCapsAtAvailable(t *testing.T) {
	q := NewMemQueue[sample](newSeq())
	ctx := context.Background()

	if err := q.Enqueue(ctx, sample{Value: "only"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := q.Consume(ctx, 5)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected consume to cap at 1 available message, got %d", len(msgs))
	}
}
