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

// HealingMessage is the payload enqueued for the healing processor.
type HealingMessage struct {
	TaskID string `json:"task_id"`
}

// HealingProcessor drains the healing-task queue and forwards each task
// to the healer for one more attempt. A resolved task reopens its
// originating job and its message is acked; an escalated task's message
// is acked; a task still pending, at the same or a new strategy, is
// nacked for redelivery. The healer persists the task's own retry state.
type HealingProcessor struct {
	queue       queue.Queue[HealingMessage]
	healer      *healer.Healer
	coordinator *coordinator.Coordinator
	log         zerolog.Logger
}

// NewHealingProcessor creates a HealingProcessor.
func NewHealingProcessor(q queue.Queue[HealingMessage], h *healer.Healer, c *coordinator.Coordinator, log zerolog.Logger) *HealingProcessor {
	return &HealingProcessor{queue: q, healer: h, coordinator: c, log: log.With().Str("subsystem", "healing_processor").Logger()}
}

// DrainOnce consumes up to batchSize healing messages and processes each.
func (p *HealingProcessor) DrainOnce(ctx context.Context, batchSize int) (int, error) {
	msgs, err := p.queue.Consume(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("healing_processor: consume: %w", err)
	}
	for _, msg := range msgs {
		p.process(ctx, msg)
	}
	return len(msgs), nil
}

func (p *HealingProcessor) process(ctx context.Context, msg queue.Message[HealingMessage]) {
	task, err := p.healer.Attempt(ctx, msg.Payload.TaskID)
	if err != nil {
		p.log.Error().Err(err).Str("task_id", msg.Payload.TaskID).Msg("healing attempt failed")
		_ = p.queue.Nack(ctx, msg.ID, true)
		return
	}

	switch task.Status {
	case models.HealingResolved:
		pending := models.JobStatusPending
		if _, err := p.coordinator.UpdateJob(ctx, task.JobID, models.JobPatch{Status: &pending}); err != nil {
			p.log.Error().Err(err).Str("job_id", task.JobID).Msg("failed to reopen job after healing")
		}
		p.log.Info().Str("task_id", task.ID).Str("job_id", task.JobID).Msg("job reopened after successful healing")
		_ = p.queue.Ack(ctx, msg.ID)
	case models.HealingEscalated:
		p.log.Warn().Str("task_id", task.ID).Str("job_id", task.JobID).Msg("healing task escalated, awaiting operator")
		_ = p.queue.Ack(ctx, msg.ID)
	default:
		// Still pending at the same or a new strategy: requeue for the
		// next pass.
		_ = p.queue.Nack(ctx, msg.ID, true)
	}
}
