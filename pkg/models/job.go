// Package models defines the core data structures shared across the
// content-scheduler control plane.
//
// The scheduler tracks a fleet of scraped repositories, the jobs that
// sync and score them, and the healing tasks that remediate failures.
// These models flow through the durable store, the work queues, and the
// HTTP API.
package models

import "time"

// JobType identifies the kind of work a Job represents.
type JobType string

const (
	JobTypeScrapeRepo          JobType = "scrape_repo"
	JobTypeSyncContent         JobType = "sync_content"
	JobTypeCheckCohesiveness   JobType = "check_cohesiveness"
	JobTypeSelfHeal            JobType = "self_heal"
	JobTypeUpdateCache         JobType = "update_cache"
	JobTypeFullSync            JobType = "full_sync"
	JobTypeCleanup             JobType = "cleanup"
	JobTypeNotify              JobType = "notify"
)

// JobStatus is the lifecycle state of a Job.
//
// The coordinator does not enforce an order between statuses. The job
// processor moves a job from pending to running, then to completed, back
// to pending for a retry, or to healing once its retries are exhausted
// (to failed when no healer is configured); the healing processor moves
// a healed job from healing back to pending.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusHealing   JobStatus = "healing"
)

// JobPriority ranks jobs for listing and dispatch ordering.
type JobPriority string

const (
	PriorityCritical JobPriority = "critical"
	PriorityHigh     JobPriority = "high"
	PriorityNormal   JobPriority = "normal"
	PriorityLow      JobPriority = "low"
)

// priorityRank returns the sort rank for a priority, lower sorts first.
// Unknown priorities sort after all known ones.
func priorityRank(p JobPriority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// PriorityRank exposes priorityRank for use by callers that sort jobs
// outside this package (e.g. the coordinator's listJobs).
func PriorityRank(p JobPriority) int { return priorityRank(p) }

// Job is a unit of work tracked by the Job Coordinator.
type Job struct {
	ID              string                 `json:"id" db:"id"`
	Type            JobType                `json:"type" db:"type"`
	Status          JobStatus              `json:"status" db:"status"`
	Priority        JobPriority             `json:"priority" db:"priority"`
	Payload         map[string]interface{} `json:"payload" db:"payload"`
	RetryCount      int                    `json:"retry_count" db:"retry_count"`
	MaxRetries      int                    `json:"max_retries" db:"max_retries"`
	HealingAttempts int                    `json:"healing_attempts" db:"healing_attempts"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
	Error           string                 `json:"error,omitempty" db:"error"`
	Result          map[string]interface{} `json:"result,omitempty" db:"result"`
}

// JobMetrics tracks aggregate counters maintained by the Job Coordinator.
type JobMetrics struct {
	TotalCreated   int            `json:"total_created"`
	TotalCompleted int            `json:"total_completed"`
	TotalFailed    int            `json:"total_failed"`
	TotalHealing   int            `json:"total_healing"`
	ByStatus       map[string]int `json:"by_status"`
}

// JobPatch describes a partial update applied by updateJob. Nil fields are
// left unchanged.
type JobPatch struct {
	Status     *JobStatus             `json:"status,omitempty"`
	RetryCount *int                   `json:"retry_count,omitempty"`
	Error      *string                `json:"error,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}
