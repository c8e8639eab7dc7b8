// Package processors wires the durable queues to the stateful
// components: each processor drains one queue, drives the matching
// component operation, and acks or nacks based on the outcome.
package processors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

// JobMessage is the payload enqueued for the job processor: a reference
// to a job the coordinator has already registered.
type JobMessage struct {
	JobID string `json:"job_id"`
}

// JobRunner executes the side effect a job's type calls for (scraping,
// cohesiveness checks, notifications...). It returns the job's result
// payload on success.
type JobRunner interface {
	RunJob(ctx context.Context, job *models.Job) (map[string]interface{}, error)
}

// JobProcessor drains the job queue, runs each job, and reconciles its
// outcome back into the coordinator — retrying, healing, or completing.
type JobProcessor struct {
	queue        queue.Queue[JobMessage]
	coordinator  *coordinator.Coordinator
	healer       *healer.Healer
	healingQueue queue.Queue[HealingMessage]
	runner       JobRunner
	log          zerolog.Logger
}

// NewJobProcessor creates a JobProcessor. healingQueue feeds every healing
// task this processor creates to the healing processor's drain loop.
func NewJobProcessor(q queue.Queue[JobMessage], c *coordinator.Coordinator, h *healer.Healer, healingQueue queue.Queue[HealingMessage], runner JobRunner, log zerolog.Logger) *JobProcessor {
	return &JobProcessor{queue: q, coordinator: c, healer: h, healingQueue: healingQueue, runner: runner, log: log.With().Str("subsystem", "job_processor").Logger()}
}

// DrainOnce consumes up to batchSize messages and processes each.
func (p *JobProcessor) DrainOnce(ctx context.Context, batchSize int) (int, error) {
	msgs, err := p.queue.Consume(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("job_processor: consume: %w", err)
	}
	for _, msg := range msgs {
		p.process(ctx, msg)
	}
	return len(msgs), nil
}

func (p *JobProcessor) process(ctx context.Context, msg queue.Message[JobMessage]) {
	job, err := p.coordinator.GetJob(ctx, msg.Payload.JobID)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", msg.Payload.JobID).Msg("job not found, dropping message")
		_ = p.queue.Ack(ctx, msg.ID)
		return
	}

	running := models.JobStatusRunning
	if _, err := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{Status: &running}); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job running")
		_ = p.queue.Nack(ctx, msg.ID, true)
		return
	}

	result, runErr := p.runner.RunJob(ctx, job)
	if runErr == nil {
		completed := models.JobStatusCompleted
		if _, err := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{Status: &completed, Result: result}); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job completed")
		}
		_ = p.queue.Ack(ctx, msg.ID)
		return
	}

	p.handleFailure(ctx, job, msg, runErr)
}

func (p *JobProcessor) handleFailure(ctx context.Context, job *models.Job, msg queue.Message[JobMessage], runErr error) {
	errMsg := runErr.Error()

	if job.RetryCount < job.MaxRetries {
		retryCount := job.RetryCount + 1
		pending := models.JobStatusPending
		if _, err := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{
			Status:     &pending,
			RetryCount: &retryCount,
			Error:      &errMsg,
		}); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job pending for retry")
		}
		_ = p.queue.Nack(ctx, msg.ID, true)
		return
	}

	if p.healer == nil {
		failed := models.JobStatusFailed
		if _, err := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{Status: &failed, Error: &errMsg}); err != nil {
			p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job failed")
		}
		_ = p.queue.Ack(ctx, msg.ID)
		return
	}

	healingContext := map[string]interface{}{"job_id": job.ID, "job_type": string(job.Type)}
	if repoName, ok := job.Payload["repo"].(string); ok && repoName != "" {
		healingContext["repo"] = repoName
	}

	task, err := p.healer.CreateTask(ctx, job.ID, models.HealingIssue{
		Type:        string(job.Type),
		Severity:    "warning",
		Description: "job exhausted its retry budget",
		Context:     healingContext,
		OriginalErr: errMsg,
	})
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to create healing task")
		failed := models.JobStatusFailed
		if _, uerr := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{Status: &failed, Error: &errMsg}); uerr != nil {
			p.log.Error().Err(uerr).Str("job_id", job.ID).Msg("failed to mark job failed")
		}
		_ = p.queue.Ack(ctx, msg.ID)
		return
	}

	// Go directly from the in-flight status to healing rather than
	// through failed first, so a retry-exhausted job increments
	// TotalHealing once instead of both TotalFailed and TotalHealing.
	healing := models.JobStatusHealing
	if _, err := p.coordinator.UpdateJob(ctx, job.ID, models.JobPatch{Status: &healing, Error: &errMsg}); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job healing")
	}
	if err := p.healingQueue.Enqueue(ctx, HealingMessage{TaskID: task.ID}); err != nil {
		p.log.Error().Err(err).Str("task_id", task.ID).Msg("failed to enqueue healing task")
	}
	p.log.Info().Str("job_id", job.ID).Str("healing_task_id", task.ID).Msg("job handed off to self-healer")
	_ = p.queue.Ack(ctx, msg.ID)
}
