package models

import "time"

// Strategy identifies one node in the self-healer's escalation graph.
type Strategy string

const (
	StrategyRetryWithBackoff  Strategy = "retry_with_backoff"
	StrategyClearCacheRetry   Strategy = "clear_cache_retry"
	StrategySwitchEndpoint    Strategy = "switch_endpoint"
	StrategyReduceBatchSize   Strategy = "reduce_batch_size"
	StrategyNotifyAndSkip     Strategy = "notify_and_skip"
	StrategyFullReset         Strategy = "full_reset"
	StrategyEscalateToAgent  Strategy = "escalate_to_agent"
)

// HealingTaskStatus is the lifecycle state of a HealingTask.
type HealingTaskStatus string

const (
	HealingPending    HealingTaskStatus = "pending"
	HealingAttempting HealingTaskStatus = "attempting"
	HealingResolved   HealingTaskStatus = "resolved"
	HealingEscalated  HealingTaskStatus = "escalated"
)

// HealingIssue describes the problem a HealingTask was created to fix.
type HealingIssue struct {
	Type        string                 `json:"type"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Context     map[string]interface{} `json:"context"`
	OriginalErr string                 `json:"original_error,omitempty"`
}

// Resolution records the outcome of one healing attempt.
type Resolution struct {
	Strategy       Strategy  `json:"strategy"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	Attempt        int       `json:"attempt"`
	ResolvedAt     time.Time `json:"resolved_at"`
	TimeToResolveMs int64    `json:"time_to_resolve_ms"`
	ResourcesUsed  map[string]interface{} `json:"resources_used,omitempty"`
}

// HealingTask is a unit of remediation work driven through the self-healer's
// strategy escalation graph.
type HealingTask struct {
	ID         string            `json:"id" db:"id"`
	JobID      string            `json:"job_id" db:"job_id"`
	Issue      HealingIssue      `json:"issue" db:"issue"`
	Strategy   Strategy          `json:"strategy" db:"strategy"`
	Attempts   int               `json:"attempts" db:"attempts"`
	MaxAttempts int              `json:"max_attempts" db:"max_attempts"`
	Status     HealingTaskStatus `json:"status" db:"status"`
	Resolution *Resolution       `json:"resolution,omitempty" db:"resolution"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// HealerMetrics tracks aggregate remediation counters.
type HealerMetrics struct {
	TotalAttempts          int                        `json:"total_attempts"`
	SuccessfulResolutions  int                        `json:"successful_resolutions"`
	Escalations            int                        `json:"escalations"`
	AverageTimeToResolveMs int64                       `json:"average_time_to_resolve_ms"`
	ByStrategy             map[string]*StrategyMetrics `json:"by_strategy"`
}

// StrategyMetrics tracks per-strategy attempt/success counters.
type StrategyMetrics struct {
	Attempts   int `json:"attempts"`
	Successes  int `json:"successes"`
	Failures   int `json:"failures"`
}

// HealthReport is the output of the healer's health-check operation.
type HealthReport struct {
	Warnings       []string `json:"warnings"`
	Critical       bool     `json:"critical"`
	EscalationRate float64  `json:"escalation_rate"`
}
