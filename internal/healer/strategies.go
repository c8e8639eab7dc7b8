package healer

import "github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"

// escalationNode describes one strategy's attempt budget, its per-attempt
// backoff schedule, and where it escalates to once that budget is
// exhausted. An empty next field marks a terminal strategy.
type escalationNode struct {
	maxAttempts int
	backoffMs   []int64
	next        models.Strategy
}

// escalationGraph is the static strategy lookup table driving the
// self-healer. It is deliberately data, not a dispatch chain in code, so
// the escalation path for any strategy can be read off in one place. Each
// backoff schedule is the fixed per-attempt delay table, not a formula:
// retry_with_backoff's doubling schedule in particular doesn't reduce to
// a min/max interpolation.
var escalationGraph = map[models.Strategy]escalationNode{
	models.StrategyRetryWithBackoff: {
		maxAttempts: 5,
		backoffMs:   []int64{1000, 2000, 4000, 8000, 16000},
		next:        models.StrategyClearCacheRetry,
	},
	models.StrategyClearCacheRetry: {
		maxAttempts: 2,
		backoffMs:   []int64{2000, 5000},
		next:        models.StrategySwitchEndpoint,
	},
	models.StrategySwitchEndpoint: {
		maxAttempts: 3,
		backoffMs:   []int64{1000, 3000, 5000},
		next:        models.StrategyReduceBatchSize,
	},
	models.StrategyReduceBatchSize: {
		maxAttempts: 3,
		backoffMs:   []int64{1000, 2000, 3000},
		next:        models.StrategyNotifyAndSkip,
	},
	models.StrategyNotifyAndSkip: {
		maxAttempts: 1,
		backoffMs:   []int64{0},
		next:        models.StrategyEscalateToAgent,
	},
	models.StrategyFullReset: {
		maxAttempts: 1,
		backoffMs:   []int64{5000},
		next:        models.StrategyEscalateToAgent,
	},
	models.StrategyEscalateToAgent: {
		maxAttempts: 1,
		backoffMs:   []int64{0},
	},
}

// entryStrategy is the strategy a fresh HealingTask starts at.
const entryStrategy = models.StrategyRetryWithBackoff

// isTerminal reports whether a strategy has nowhere left to escalate to.
func isTerminal(s models.Strategy) bool {
	node, ok := escalationGraph[s]
	return !ok || node.next == ""
}

// backoffMs returns the fixed backoff delay for the given attempt number
// (1-indexed) within a strategy's schedule. An attempt past the end of
// the schedule holds at the last entry.
func backoffMs(s models.Strategy, attempt int) int64 {
	node := escalationGraph[s]
	if len(node.backoffMs) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(node.backoffMs) {
		attempt = len(node.backoffMs)
	}
	return node.backoffMs[attempt-1]
}
