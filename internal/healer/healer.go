// Package healer implements the Self-Healer: a strategy-escalation state
// machine that attempts to remediate failed jobs before giving up and
// escalating to a human operator.
package healer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/apperr"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/clockid"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

const stateKey = "self_healer"

const escalationRateWarnThreshold = 0.30
const pendingWarnHorizon = 30 * time.Minute

// Remediator performs the side effect a strategy calls for: retrying,
// clearing a cache entry, switching an upstream endpoint, and so on. It
// receives a snapshot of the task being attempted (strategy, issue context,
// attempt count) rather than loose arguments, since several strategies need
// more than the issue to act (batch size, job ID for re-enqueue). Wraps the
// actual queue/cache/scraper collaborators; a fixture implementation drives
// tests.
type Remediator interface {
	Remediate(ctx context.Context, task *models.HealingTask) (bool, string, error)
}

type healerState struct {
	Tasks   map[string]*models.HealingTask `json:"tasks"`
	Metrics models.HealerMetrics           `json:"metrics"`
}

// Healer owns every HealingTask and drives it through the escalation
// graph until it resolves or is escalated to a human.
type Healer struct {
	remediator Remediator
	durable    store.Durable
	clock      clockid.Clock
	ids        clockid.IDGenerator
	log        zerolog.Logger

	mu     sync.Mutex
	state  healerState
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Healer and hydrates it from durable storage.
func New(ctx context.Context, remediator Remediator, durable store.Durable, clock clockid.Clock, ids clockid.IDGenerator, log zerolog.Logger) (*Healer, error) {
	h := &Healer{
		remediator: remediator,
		durable:    durable,
		clock:      clock,
		ids:        ids,
		log:        log.With().Str("subsystem", "healer").Logger(),
		sleep:      contextSleep,
		state: healerState{
			Tasks:   make(map[string]*models.HealingTask),
			Metrics: models.HealerMetrics{ByStrategy: make(map[string]*models.StrategyMetrics)},
		},
	}
	found, err := durable.Load(ctx, stateKey, &h.state)
	if err != nil {
		return nil, apperr.Internal(err, "healer: hydrate state")
	}
	if !found || h.state.Tasks == nil {
		h.state.Tasks = make(map[string]*models.HealingTask)
	}
	if h.state.Metrics.ByStrategy == nil {
		h.state.Metrics.ByStrategy = make(map[string]*models.StrategyMetrics)
	}
	return h, nil
}

func (h *Healer) persistLocked(ctx context.Context) error {
	if err := h.durable.Save(ctx, stateKey, &h.state); err != nil {
		return apperr.Internal(err, "healer: persist state")
	}
	return nil
}

// CreateTask registers a new healing task at the graph's entry strategy.
func (h *Healer) CreateTask(ctx context.Context, jobID string, issue models.HealingIssue) (*models.HealingTask, error) {
	return h.createTask(ctx, jobID, issue, entryStrategy, escalationGraph[entryStrategy].maxAttempts)
}

// CreateTaskWithOverride registers a new healing task at a caller-chosen
// strategy and attempt budget, overriding the graph's default entry point
// and maxAttempts for that strategy. Used by callers that know a tighter
// (or looser) retry budget than the graph's default applies to their job.
func (h *Healer) CreateTaskWithOverride(ctx context.Context, jobID string, issue models.HealingIssue, strategy models.Strategy, maxAttempts int) (*models.HealingTask, error) {
	return h.createTask(ctx, jobID, issue, strategy, maxAttempts)
}

func (h *Healer) createTask(ctx context.Context, jobID string, issue models.HealingIssue, strategy models.Strategy, maxAttempts int) (*models.HealingTask, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	task := &models.HealingTask{
		ID:          h.ids.NewID("heal"),
		JobID:       jobID,
		Issue:       issue,
		Strategy:    strategy,
		MaxAttempts: maxAttempts,
		Status:      models.HealingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	h.state.Tasks[task.ID] = task

	if err := h.persistLocked(ctx); err != nil {
		return nil, err
	}
	h.log.Info().Str("task_id", task.ID).Str("job_id", jobID).Str("strategy", string(task.Strategy)).Msg("healing task created")
	return task, nil
}

// GetTask returns a healing task by ID.
func (h *Healer) GetTask(ctx context.Context, id string) (*models.HealingTask, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.state.Tasks[id]
	if !ok {
		return nil, apperr.NotFound("healing task %q not found", id)
	}
	cp := *t
	return &cp, nil
}

// ListTasks returns every healing task.
func (h *Healer) ListTasks(ctx context.Context) ([]*models.HealingTask, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*models.HealingTask, 0, len(h.state.Tasks))
	for _, t := range h.state.Tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Attempt drives one remediation attempt for the task. On success, the
// task resolves. On failure, it either retries the same strategy (if
// attempts remain) or escalates to the next node in the graph. If the
// terminal strategy's attempts are exhausted, the task is marked escalated.
func (h *Healer) Attempt(ctx context.Context, taskID string) (*models.HealingTask, error) {
	h.mu.Lock()
	task, ok := h.state.Tasks[taskID]
	if !ok {
		h.mu.Unlock()
		return nil, apperr.NotFound("healing task %q not found", taskID)
	}
	task.Status = models.HealingAttempting
	task.Attempts++
	snapshot := *task
	h.mu.Unlock()

	strategy := snapshot.Strategy
	attempt := snapshot.Attempts

	delay := time.Duration(backoffMs(strategy, attempt)) * time.Millisecond
	if delay > 0 {
		if err := h.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	start := h.clock.Now()
	success, message, remErr := h.remediator.Remediate(ctx, &snapshot)
	if strategy == models.StrategyEscalateToAgent {
		// escalate_to_agent hands the issue to a human; it never resolves
		// the task on its own, regardless of what the remediator reports.
		success = false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	task = h.state.Tasks[taskID]
	now := h.clock.Now()
	task.UpdatedAt = now

	metrics := h.strategyMetricsLocked(strategy)
	metrics.Attempts++
	h.state.Metrics.TotalAttempts++

	if remErr == nil && success {
		metrics.Successes++
		h.state.Metrics.SuccessfulResolutions++
		elapsed := now.Sub(start).Milliseconds()
		task.Status = models.HealingResolved
		task.Resolution = &models.Resolution{
			Strategy:        strategy,
			Success:         true,
			Message:         message,
			Attempt:         attempt,
			ResolvedAt:      now,
			TimeToResolveMs: elapsed,
		}
		h.state.Metrics.AverageTimeToResolveMs = rollingAverage(
			h.state.Metrics.AverageTimeToResolveMs, h.state.Metrics.SuccessfulResolutions, elapsed)

		if err := h.persistLocked(ctx); err != nil {
			return nil, err
		}
		h.log.Info().Str("task_id", taskID).Str("strategy", string(strategy)).Msg("healing task resolved")
		cp := *task
		return &cp, nil
	}

	metrics.Failures++
	if message == "" && remErr != nil {
		message = remErr.Error()
	}

	node := escalationGraph[strategy]
	if attempt < task.MaxAttempts {
		task.Status = models.HealingPending
		if err := h.persistLocked(ctx); err != nil {
			return nil, err
		}
		cp := *task
		return &cp, nil
	}

	if isTerminal(strategy) {
		task.Status = models.HealingEscalated
		h.state.Metrics.Escalations++
		if err := h.persistLocked(ctx); err != nil {
			return nil, err
		}
		h.log.Warn().Str("task_id", taskID).Str("job_id", task.JobID).Msg("healing task escalated to agent")
		cp := *task
		return &cp, nil
	}

	task.Strategy = node.next
	task.Attempts = 0
	task.MaxAttempts = escalationGraph[node.next].maxAttempts
	task.Status = models.HealingPending
	if err := h.persistLocked(ctx); err != nil {
		return nil, err
	}
	h.log.Info().Str("task_id", taskID).Str("next_strategy", string(task.Strategy)).Msg("healing task escalated to next strategy")
	cp := *task
	return &cp, nil
}

func (h *Healer) strategyMetricsLocked(s models.Strategy) *models.StrategyMetrics {
	m, ok := h.state.Metrics.ByStrategy[string(s)]
	if !ok {
		m = &models.StrategyMetrics{}
		h.state.Metrics.ByStrategy[string(s)] = m
	}
	return m
}

// contextSleep blocks for d or until ctx is cancelled, whichever comes first.
func contextSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// rollingAverage folds a new sample into the running average over n
// observations, rounding to the nearest millisecond.
func rollingAverage(avgOld int64, n int, sample int64) int64 {
	if n <= 1 {
		return sample
	}
	return int64(math.Round(float64(avgOld*int64(n-1)+sample) / float64(n)))
}

// GetMetrics returns a copy of the aggregate healer metrics.
func (h *Healer) GetMetrics(ctx context.Context) (models.HealerMetrics, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cp := h.state.Metrics
	cp.ByStrategy = make(map[string]*models.StrategyMetrics, len(h.state.Metrics.ByStrategy))
	for k, v := range h.state.Metrics.ByStrategy {
		vv := *v
		cp.ByStrategy[k] = &vv
	}
	return cp, nil
}

// HealthCheck reports operational warnings: tasks pending too long, and a
// critical flag if the escalation rate is too high over a meaningful
// sample size.
func (h *Healer) HealthCheck(ctx context.Context) (models.HealthReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := models.HealthReport{}
	now := h.clock.Now()
	for _, t := range h.state.Tasks {
		if t.Status == models.HealingPending && now.Sub(t.UpdatedAt) > pendingWarnHorizon {
			report.Warnings = append(report.Warnings, "task "+t.ID+" has been pending for over 30 minutes")
		}
	}

	if h.state.Metrics.TotalAttempts > 10 {
		report.EscalationRate = float64(h.state.Metrics.Escalations) / float64(h.state.Metrics.TotalAttempts)
		if report.EscalationRate > escalationRateWarnThreshold {
			report.Critical = true
			report.Warnings = append(report.Warnings, "escalation rate exceeds 30%")
		}
	}
	return report, nil
}
