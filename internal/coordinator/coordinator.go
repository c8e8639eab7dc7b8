// Package coordinator implements the Job Coordinator: the single-writer
// registry of every job the control plane has ever created, its status
// transitions, and the aggregate metrics derived from them.
package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/apperr"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/clockid"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

const stateKey = "job_coordinator"

const cleanupHorizon = 24 * time.Hour

// state is the entire coordinator state, persisted as a single blob.
type state struct {
	Jobs    map[string]*models.Job `json:"jobs"`
	Metrics models.JobMetrics      `json:"metrics"`
}

// Coordinator owns the lifecycle of every Job: creation, status
// transitions, metrics, listing, and retention cleanup.
type Coordinator struct {
	durable store.Durable
	clock   clockid.Clock
	ids     clockid.IDGenerator
	log     zerolog.Logger

	mu    sync.RWMutex
	state state
}

// New creates a Coordinator and hydrates it from durable storage, if any
// prior state exists.
func New(ctx context.Context, durable store.Durable, clock clockid.Clock, ids clockid.IDGenerator, log zerolog.Logger) (*Coordinator, error) {
	c := &Coordinator{
		durable: durable,
		clock:   clock,
		ids:     ids,
		log:     log.With().Str("subsystem", "coordinator").Logger(),
		state: state{
			Jobs:    make(map[string]*models.Job),
			Metrics: models.JobMetrics{ByStatus: make(map[string]int)},
		},
	}
	found, err := durable.Load(ctx, stateKey, &c.state)
	if err != nil {
		return nil, apperr.Internal(err, "coordinator: hydrate state")
	}
	if !found {
		c.state = state{
			Jobs:    make(map[string]*models.Job),
			Metrics: models.JobMetrics{ByStatus: make(map[string]int)},
		}
	}
	if c.state.Jobs == nil {
		c.state.Jobs = make(map[string]*models.Job)
	}
	if c.state.Metrics.ByStatus == nil {
		c.state.Metrics.ByStatus = make(map[string]int)
	}
	return c, nil
}

func (c *Coordinator) persistLocked(ctx context.Context) error {
	if err := c.durable.Save(ctx, stateKey, &c.state); err != nil {
		return apperr.Internal(err, "coordinator: persist state")
	}
	return nil
}

// CreateJob validates and registers a new job in pending status.
func (c *Coordinator) CreateJob(ctx context.Context, jobType models.JobType, priority models.JobPriority, payload map[string]interface{}, maxRetries int) (*models.Job, error) {
	if jobType == "" {
		return nil, apperr.Validation("job type is required")
	}
	if priority == "" {
		priority = models.PriorityNormal
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	now := c.clock.Now()
	job := &models.Job{
		ID:         c.ids.NewID("job"),
		Type:       jobType,
		Status:     models.JobStatusPending,
		Priority:   priority,
		Payload:    payload,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Jobs[job.ID] = job
	c.state.Metrics.TotalCreated++
	c.state.Metrics.ByStatus[string(job.Status)]++

	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	c.log.Info().Str("job_id", job.ID).Str("type", string(jobType)).Msg("job created")
	return job, nil
}

// GetJob returns a job by ID.
func (c *Coordinator) GetJob(ctx context.Context, id string) (*models.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.state.Jobs[id]
	if !ok {
		return nil, apperr.NotFound("job %q not found", id)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns jobs matching the given optional status and type
// filters, sorted by priority ascending then createdAt descending.
func (c *Coordinator) ListJobs(ctx context.Context, status models.JobStatus, jobType models.JobType) ([]*models.Job, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Job, 0, len(c.state.Jobs))
	for _, job := range c.state.Jobs {
		if status != "" && job.Status != status {
			continue
		}
		if jobType != "" && job.Type != jobType {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := models.PriorityRank(out[i].Priority), models.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateJob applies a partial patch to a job, handling the status
// transition side effects (completion timestamp, metrics counters).
func (c *Coordinator) UpdateJob(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.state.Jobs[id]
	if !ok {
		return nil, apperr.NotFound("job %q not found", id)
	}

	prevStatus := job.Status

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.RetryCount != nil {
		job.RetryCount = *patch.RetryCount
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.Result != nil {
		job.Result = patch.Result
	}
	if patch.Payload != nil {
		job.Payload = patch.Payload
	}
	job.UpdatedAt = c.clock.Now()

	if patch.Status != nil && *patch.Status != prevStatus {
		c.state.Metrics.ByStatus[string(prevStatus)]--
		c.state.Metrics.ByStatus[string(*patch.Status)]++

		switch *patch.Status {
		case models.JobStatusCompleted:
			now := c.clock.Now()
			job.CompletedAt = &now
			c.state.Metrics.TotalCompleted++
		case models.JobStatusFailed:
			c.state.Metrics.TotalFailed++
		case models.JobStatusHealing:
			c.state.Metrics.TotalHealing++
		}
	}

	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	cp := *job
	return &cp, nil
}

// DeleteJob removes a job from the registry.
func (c *Coordinator) DeleteJob(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.state.Jobs[id]
	if !ok {
		return apperr.NotFound("job %q not found", id)
	}
	delete(c.state.Jobs, id)
	c.state.Metrics.ByStatus[string(job.Status)]--

	return c.persistLocked(ctx)
}

// GetMetrics returns a copy of the aggregate job metrics.
func (c *Coordinator) GetMetrics(ctx context.Context) (models.JobMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := c.state.Metrics
	cp.ByStatus = make(map[string]int, len(c.state.Metrics.ByStatus))
	for k, v := range c.state.Metrics.ByStatus {
		cp.ByStatus[k] = v
	}
	return cp, nil
}

// Cleanup removes completed/failed jobs older than the retention horizon,
// returning the number of jobs removed.
func (c *Coordinator) Cleanup(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for id, job := range c.state.Jobs {
		if job.Status != models.JobStatusCompleted && job.Status != models.JobStatusFailed {
			continue
		}
		if now.Sub(job.UpdatedAt) < cleanupHorizon {
			continue
		}
		delete(c.state.Jobs, id)
		c.state.Metrics.ByStatus[string(job.Status)]--
		removed++
	}
	if removed > 0 {
		if err := c.persistLocked(ctx); err != nil {
			return 0, err
		}
		c.log.Info().Int("removed", removed).Msg("cleanup evicted stale jobs")
	}
	return removed, nil
}
