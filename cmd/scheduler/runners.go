package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/processors"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

const (
	skippedTaskTTL   = 7 * 24 * time.Hour
	escalatedTaskTTL = 0 // no expiry: an agent needs to act on it
)

// jobRunner executes the side effect a job's type calls for. Only
// scrape_repo is wired to a real collaborator (the sync engine); other
// job types are accepted but currently no-ops, matching the set of
// operations this control plane actually drives end-to-end.
type jobRunner struct {
	engine *reposync.Engine
}

func (r *jobRunner) RunJob(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	switch job.Type {
	case models.JobTypeScrapeRepo:
		repoName, _ := job.Payload["repo"].(string)
		if repoName == "" {
			return nil, fmt.Errorf("job %s: scrape_repo payload missing repo name", job.ID)
		}
		repo, err := r.engine.SyncRepo(ctx, repoName)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			return map[string]interface{}{"changed": false}, nil
		}
		return map[string]interface{}{"changed": true, "overall_score": repo.Cohesiveness.Overall}, nil
	default:
		return map[string]interface{}{"noop": true}, nil
	}
}

// remediator implements the healer's Remediator interface. Each strategy
// drives a distinct recovery action: re-enqueueing the original work at
// the appropriate priority, trimming a cache entry, halving a batch size,
// or handing off to a human through a persisted record and a notify job.
type remediator struct {
	engine      *reposync.Engine
	coordinator *coordinator.Coordinator
	kv          store.KV
	jobQueue    queue.Queue[processors.JobMessage]
	scrapeQueue queue.Queue[models.ScrapeTask]
}

func (r *remediator) Remediate(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	switch task.Strategy {
	case models.StrategyRetryWithBackoff:
		return r.retryJob(ctx, task)
	case models.StrategyClearCacheRetry:
		return r.clearCacheRetry(ctx, task)
	case models.StrategySwitchEndpoint:
		return r.switchEndpoint(ctx, task)
	case models.StrategyReduceBatchSize:
		return r.reduceBatchSize(ctx, task)
	case models.StrategyFullReset:
		return r.fullReset(ctx, task)
	case models.StrategyNotifyAndSkip:
		return r.notifyAndSkip(ctx, task)
	case models.StrategyEscalateToAgent:
		return r.escalateToAgent(ctx, task)
	default:
		return false, "unknown strategy", nil
	}
}

func repoNameFrom(issue models.HealingIssue) string {
	name, _ := issue.Context["repo"].(string)
	return name
}

// reenqueueJob creates a fresh sync_content job carrying payload and
// enqueues it at high priority, the common tail end of every retry-style
// strategy.
func (r *remediator) reenqueueJob(ctx context.Context, payload map[string]interface{}) (bool, string, error) {
	job, err := r.coordinator.CreateJob(ctx, models.JobTypeSyncContent, models.PriorityHigh, payload, 0)
	if err != nil {
		return false, "", err
	}
	if err := r.jobQueue.Enqueue(ctx, processors.JobMessage{JobID: job.ID}); err != nil {
		return false, "", err
	}
	return true, "re-enqueued job " + job.ID, nil
}

func (r *remediator) retryJob(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	repoName := repoNameFrom(task.Issue)
	payload := map[string]interface{}{"retry_count": task.Attempts}
	if repoName != "" {
		payload["repo"] = repoName
	}
	return r.reenqueueJob(ctx, payload)
}

func (r *remediator) clearCacheRetry(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	repoName := repoNameFrom(task.Issue)
	if r.kv != nil {
		keys := []string{"cache:" + task.JobID}
		if repoName != "" {
			keys = append(keys, "repo:"+repoName, "cohesiveness:"+repoName)
		}
		if err := r.kv.Delete(ctx, keys...); err != nil {
			return false, "", err
		}
	}
	return r.retryJob(ctx, task)
}

// switchEndpoint retries the sync synchronously against whatever upstream
// the scraper is currently configured to use. A real multi-endpoint
// failover is an implementation detail of the Scraper collaborator, not
// this remediator; here it's a bounded retry that doesn't re-enqueue, so
// it never loops the job queue on a strategy meant to be quick to rule out.
func (r *remediator) switchEndpoint(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	repoName := repoNameFrom(task.Issue)
	if repoName == "" {
		return false, "no repo in healing context to retry against a backup endpoint", nil
	}
	repo, err := r.engine.SyncRepo(ctx, repoName)
	if err != nil {
		return false, "", err
	}
	return repo != nil, "retried " + repoName + " against backup endpoint", nil
}

func (r *remediator) reduceBatchSize(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	batchSize := contextInt(task.Issue.Context, "batch_size", 10)
	if batchSize > 1 {
		batchSize /= 2
	}
	repoName := repoNameFrom(task.Issue)
	payload := map[string]interface{}{"batch_size": batchSize}
	if repoName != "" {
		payload["repo"] = repoName
	}
	return r.reenqueueJob(ctx, payload)
}

func (r *remediator) fullReset(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	repoName := repoNameFrom(task.Issue)
	if repoName == "" {
		return false, "no repo in healing context to reset", nil
	}
	if r.kv != nil {
		if err := r.kv.Delete(ctx, "repo:"+repoName, "cohesiveness:"+repoName); err != nil {
			return false, "", err
		}
	}
	if err := r.scrapeQueue.Enqueue(ctx, models.ScrapeTask{RepoName: repoName, ScrapeType: "full", Priority: models.PriorityCritical}); err != nil {
		return false, "", err
	}
	return true, "queued full reset scrape for " + repoName, nil
}

func (r *remediator) notifyAndSkip(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	if r.kv != nil {
		if err := r.persistTask(ctx, "skipped:"+task.ID, task, skippedTaskTTL); err != nil {
			return false, "", err
		}
	}
	return true, "operator notified, job skipped", nil
}

func (r *remediator) escalateToAgent(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	if r.kv != nil {
		if err := r.persistTask(ctx, "escalated:"+task.ID, task, escalatedTaskTTL); err != nil {
			return false, "", err
		}
	}
	job, err := r.coordinator.CreateJob(ctx, models.JobTypeNotify, models.PriorityCritical, map[string]interface{}{
		"task_id": task.ID,
		"issue":   task.Issue,
	}, 0)
	if err != nil {
		return false, "", err
	}
	if err := r.jobQueue.Enqueue(ctx, processors.JobMessage{JobID: job.ID}); err != nil {
		return false, "", err
	}
	// The returned success value is advisory only: Healer.Attempt forces
	// escalate_to_agent to never resolve a task, no matter what's reported
	// here.
	return true, "escalated to on-call operator", nil
}

func (r *remediator) persistTask(ctx context.Context, key string, task *models.HealingTask, ttl time.Duration) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, key, string(raw), ttl)
}

// healingEscalator adapts the healer and the healing queue to the
// reposync.HealingEscalator interface, letting the sync engine hand
// critical cohesiveness issues to the self-healer without importing it
// directly (avoiding the processors/reposync/healer import cycle).
type healingEscalator struct {
	healer       *healer.Healer
	healingQueue queue.Queue[processors.HealingMessage]
}

func (e *healingEscalator) CreateTaskWithOverride(ctx context.Context, jobID string, issue models.HealingIssue, strategy models.Strategy, maxAttempts int) (*models.HealingTask, error) {
	return e.healer.CreateTaskWithOverride(ctx, jobID, issue, strategy, maxAttempts)
}

func (e *healingEscalator) EnqueueHealing(ctx context.Context, taskID string) error {
	return e.healingQueue.Enqueue(ctx, processors.HealingMessage{TaskID: taskID})
}

func contextInt(ctx map[string]interface{}, key string, def int) int {
	if ctx == nil {
		return def
	}
	switch v := ctx[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
