package coordinator

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

func (f fixedClock) Now() time.Time { return f.t }

type seqIDs struct{ n int }

func (s *seqIDs) NewID(prefix string) string {
	s.n++
	return prefix + "-fixed-" + strconv.Itoa(s.n)
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(context.Background(), store.NewMemDurable(), fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, &seqIDs{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func TestCreateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("successful job creation", func(t *testing.T) {
		c := newTestCoordinator(t)
		job, err := c.CreateJob(ctx, models.JobTypeScrapeRepo, models.PriorityHigh, map[string]interface{}{"repo": "foo"}, 0)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if job.ID == "" {
			t.Error("expected job ID to be set")
		}
		if job.Status != models.JobStatusPending {
			t.Errorf("expected status pending, got %q", job.Status)
		}
		if job.MaxRetries != 3 {
			t.Errorf("expected default max retries 3, got %d", job.MaxRetries)
		}
	})

	t.Run("missing type returns error", func(t *testing.T) {
		c := newTestCoordinator(t)
		_, err := c.CreateJob(ctx, "", models.PriorityNormal, nil, 0)
		if err == nil {
			t.Error("expected error for missing job type")
		}
	})
}

func TestListJobsOrdering(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	low, _ := c.CreateJob(ctx, models.JobTypeCleanup, models.PriorityLow, nil, 0)
	high, _ := c.CreateJob(ctx, models.JobTypeSelfHeal, models.PriorityHigh, nil, 0)
	critical, _ := c.CreateJob(ctx, models.JobTypeSyncContent, models.PriorityCritical, nil, 0)

	jobs, err := c.ListJobs(ctx, "", "")
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != critical.ID || jobs[1].ID != high.ID || jobs[2].ID != low.ID {
		t.Errorf("expected priority order critical,high,low; got %s,%s,%s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}

func TestUpdateJobStatusTransitions(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	job, _ := c.CreateJob(ctx, models.JobTypeScrapeRepo, models.PriorityNormal, nil, 0)

	completed := models.JobStatusCompleted
	updated, err := c.UpdateJob(ctx, job.ID, models.JobPatch{Status: &completed})
	if err != nil {
		t.Fatalf("UpdateJob returned error: %v", err)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set on completion")
	}

	metrics, err := c.GetMetrics(ctx)
	if err != nil {
		t.Fatalf("GetMetrics returned error: %v", err)
	}
	if metrics.TotalCompleted != 1 {
		t.Errorf("expected TotalCompleted=1, got %d", metrics.TotalCompleted)
	}
	if metrics.ByStatus[string(models.JobStatusCompleted)] != 1 {
		t.Errorf("expected ByStatus[completed]=1, got %d", metrics.ByStatus[string(models.JobStatusCompleted)])
	}
	if metrics.ByStatus[string(models.JobStatusPending)] != 0 {
		t.Errorf("expected ByStatus[pending]=0, got %d", metrics.ByStatus[string(models.JobStatusPending)])
	}
}

func TestGetJobNotFound(t *testing.T) {
	c := newTestCoordinator(t)
	if _, err := c.GetJob(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown job id")
	}
}

func TestCleanupEvictsJobsOlderThanHorizon(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	stale, _ := c.CreateJob(ctx, models.JobTypeCleanup, models.PriorityNormal, nil, 0)
	alsoStale, _ := c.CreateJob(ctx, models.JobTypeCleanup, models.PriorityNormal, nil, 0)
	fresh, _ := c.CreateJob(ctx, models.JobTypeCleanup, models.PriorityNormal, nil, 0)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := models.JobStatusCompleted
	failed := models.JobStatusFailed

	c.state.Jobs[stale.ID].Status = completed
	c.state.Jobs[stale.ID].UpdatedAt = now.Add(-25 * time.Hour)
	c.state.Jobs[alsoStale.ID].Status = failed
	c.state.Jobs[alsoStale.ID].UpdatedAt = now.Add(-30 * time.Hour)
	c.state.Jobs[fresh.ID].Status = completed
	c.state.Jobs[fresh.ID].UpdatedAt = now.Add(-23 * time.Hour)
	c.state.Metrics.ByStatus[string(completed)] = 2
	c.state.Metrics.ByStatus[string(failed)] = 1

	removed, err := c.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 jobs removed, got %d", removed)
	}

	if _, err := c.GetJob(ctx, stale.ID); err == nil {
		t.Error("expected stale completed job to be evicted")
	}
	if _, err := c.GetJob(ctx, alsoStale.ID); err == nil {
		t.Error("expected stale failed job to be evicted")
	}
	if _, err := c.GetJob(ctx, fresh.ID); err != nil {
		t.Errorf("expected fresh job to survive cleanup, got error: %v", err)
	}
}

func TestDeleteJob(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	job, _ := c.CreateJob(ctx, models.JobTypeCleanup, models.PriorityNormal, nil, 0)
	if err := c.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("DeleteJob returned error: %v", err)
	}
	if _, err := c.GetJob(ctx, job.ID); err == nil {
		t.Error("expected job to be gone after delete")
	}
}
