package processors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

// scrapeHealingMaxAttempts caps retries for a scrape failure below the
// graph's default retry_with_backoff budget: a single repo's scrape is
// cheap to retry but shouldn't hold up the queue for five attempts.
const scrapeHealingMaxAttempts = 3

// ScrapeProcessor drains the scrape-task queue and syncs each repo
// through the sync engine, which owns the canonical record and its KV
// mirror.
type ScrapeProcessor struct {
	queue        queue.Queue[models.ScrapeTask]
	engine       *reposync.Engine
	healer       *healer.Healer
	healingQueue queue.Queue[HealingMessage]
	log          zerolog.Logger
}

// NewScrapeProcessor creates a ScrapeProcessor. healingQueue feeds every
// healing task this processor creates to the healing processor's drain
// loop.
func NewScrapeProcessor(q queue.Queue[models.ScrapeTask], engine *reposync.Engine, h *healer.Healer, healingQueue queue.Queue[HealingMessage], log zerolog.Logger) *ScrapeProcessor {
	return &ScrapeProcessor{queue: q, engine: engine, healer: h, healingQueue: healingQueue, log: log.With().Str("subsystem", "scrape_processor").Logger()}
}

// DrainOnce consumes up to batchSize scrape tasks and processes each.
func (p *ScrapeProcessor) DrainOnce(ctx context.Context, batchSize int) (int, error) {
	msgs, err := p.queue.Consume(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("scrape_processor: consume: %w", err)
	}
	for _, msg := range msgs {
		p.process(ctx, msg)
	}
	return len(msgs), nil
}

func (p *ScrapeProcessor) process(ctx context.Context, msg queue.Message[models.ScrapeTask]) {
	task := msg.Payload

	repo, err := p.engine.SyncRepo(ctx, task.RepoName)
	if err != nil {
		p.log.Error().Err(err).Str("repo", task.RepoName).Msg("scrape failed")
		if p.healer != nil {
			healingTask, herr := p.healer.CreateTaskWithOverride(ctx, task.ID, models.HealingIssue{
				Type:        "scrape_failure",
				Severity:    "warning",
				Description: "repository scrape failed",
				Context:     map[string]interface{}{"repo": task.RepoName},
				OriginalErr: err.Error(),
			}, models.StrategyRetryWithBackoff, scrapeHealingMaxAttempts)
			if herr != nil {
				p.log.Error().Err(herr).Str("repo", task.RepoName).Msg("failed to create healing task for scrape failure")
			} else if err := p.healingQueue.Enqueue(ctx, HealingMessage{TaskID: healingTask.ID}); err != nil {
				p.log.Error().Err(err).Str("task_id", healingTask.ID).Msg("failed to enqueue healing task")
			}
		}
		_ = p.queue.Nack(ctx, msg.ID, true)
		return
	}

	if repo == nil {
		// ETag unchanged: nothing to record.
		_ = p.queue.Ack(ctx, msg.ID)
		return
	}

	p.log.Info().Str("repo", repo.FullName).Int("overall", repo.Cohesiveness.Overall).Msg("repo synced")
	_ = p.queue.Ack(ctx, msg.ID)
}
