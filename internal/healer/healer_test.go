package healer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

type fixedClock struct{ t time.Time }

func (f *fixedClock) Now() time.Time {
	f.t = f.t.Add(time.Millisecond)
	return f.t
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID(prefix string) string {
	s.n++
	return prefix + "-fixed-" + strconv.Itoa(s.n)
}

// scriptedRemediator fails a fixed number of times before succeeding,
// regardless of which strategy is asked.
type scriptedRemediator struct {
	failuresRemaining int
	calls             []models.Strategy
}

func (r *scriptedRemediator) Remediate(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	r.calls = append(r.calls, task.Strategy)
	if r.failuresRemaining > 0 {
		r.failuresRemaining--
		return false, "simulated failure", nil
	}
	return true, "simulated success", nil
}

// alwaysSucceedsRemediator reports success unconditionally, regardless of
// strategy. Used to prove escalate_to_agent never resolves a task even
// when the remediator claims it did.
type alwaysSucceedsRemediator struct{}

func (alwaysSucceedsRemediator) Remediate(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	return true, "reported success", nil
}

func newTestHealer(t *testing.T, rem Remediator) *Healer {
	t.Helper()
	h, err := New(context.Background(), rem, store.NewMemDurable(), &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, &seqIDs{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	h.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return h
}

func TestCreateTaskStartsAtEntryStrategy(t *testing.T) {
	h := newTestHealer(t, &scriptedRemediator{})
	task, err := h.CreateTask(context.Background(), "job-1", models.HealingIssue{Type: "scrape_failure"})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}
	if task.Strategy != models.StrategyRetryWithBackoff {
		t.Errorf("expected entry strategy retry_with_backoff, got %q", task.Strategy)
	}
	if task.Status != models.HealingPending {
		t.Errorf("expected pending status, got %q", task.Status)
	}
}

func TestAttemptResolvesOnSuccess(t *testing.T) {
	rem := &scriptedRemediator{}
	h := newTestHealer(t, rem)
	ctx := context.Background()

	task, _ := h.CreateTask(ctx, "job-1", models.HealingIssue{Type: "scrape_failure"})
	result, err := h.Attempt(ctx, task.ID)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Status != models.HealingResolved {
		t.Errorf("expected resolved status, got %q", result.Status)
	}
	if result.Resolution == nil || !result.Resolution.Success {
		t.Errorf("expected a successful resolution, got %+v", result.Resolution)
	}
}

func TestAttemptEscalatesAfterExhaustingStrategy(t *testing.T) {
	rem := &scriptedRemediator{failuresRemaining: 5}
	h := newTestHealer(t, rem)
	ctx := context.Background()

	task, _ := h.CreateTask(ctx, "job-1", models.HealingIssue{Type: "scrape_failure"})

	var result *models.HealingTask
	var err error
	for i := 0; i < 5; i++ {
		result, err = h.Attempt(ctx, task.ID)
		if err != nil {
			t.Fatalf("Attempt returned error: %v", err)
		}
	}
	if result.Strategy != models.StrategyClearCacheRetry {
		t.Errorf("expected escalation to clear_cache_retry after 5 failed retry_with_backoff attempts, got %q", result.Strategy)
	}
	if result.Attempts != 0 {
		t.Errorf("expected attempts reset to 0 on escalation, got %d", result.Attempts)
	}
}

func TestAttemptEscalatesToAgentWhenTerminalExhausted(t *testing.T) {
	rem := &scriptedRemediator{failuresRemaining: 1000}
	h := newTestHealer(t, rem)
	ctx := context.Background()

	task, _ := h.CreateTask(ctx, "job-1", models.HealingIssue{Type: "scrape_failure"})

	var result *models.HealingTask
	var err error
	// retry_with_backoff(5) + clear_cache_retry(2) + switch_endpoint(3) +
	// reduce_batch_size(3) + notify_and_skip(1) + escalate_to_agent(1) = 15 attempts.
	for i := 0; i < 15; i++ {
		result, err = h.Attempt(ctx, task.ID)
		if err != nil {
			t.Fatalf("Attempt returned error: %v", err)
		}
	}
	if result.Status != models.HealingEscalated {
		t.Errorf("expected escalated status, got %q", result.Status)
	}

	metrics, err := h.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics returned error: %v", err)
	}
	if metrics.Escalations != 1 {
		t.Errorf("expected 1 escalation recorded, got %d", metrics.Escalations)
	}
}

func TestAttemptEscalateToAgentNeverReportsSuccess(t *testing.T) {
	h := newTestHealer(t, alwaysSucceedsRemediator{})
	ctx := context.Background()

	task, err := h.CreateTaskWithOverride(ctx, "job-1", models.HealingIssue{Type: "scrape_failure"}, models.StrategyEscalateToAgent, escalationGraph[models.StrategyEscalateToAgent].maxAttempts)
	if err != nil {
		t.Fatalf("CreateTaskWithOverride returned error: %v", err)
	}

	result, err := h.Attempt(ctx, task.ID)
	if err != nil {
		t.Fatalf("Attempt returned error: %v", err)
	}
	if result.Status != models.HealingEscalated {
		t.Errorf("expected escalate_to_agent to always escalate even when the remediator reports success, got status %q", result.Status)
	}
	if result.Resolution != nil {
		t.Errorf("expected no resolution recorded for escalate_to_agent, got %+v", result.Resolution)
	}
}
