package healer

import (
	"testing"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

func TestBackoffMsFollowsRetryWithBackoffDoublingSchedule(t *testing.T) {
	want := []int64{1000, 2000, 4000, 8000, 16000}
	for attempt, wantMs := range want {
		got := backoffMs(models.StrategyRetryWithBackoff, attempt+1)
		if got != wantMs {
			t.Errorf("attempt %d: expected %dms, got %dms", attempt+1, wantMs, got)
		}
	}
}

func TestBackoffMsHoldsAtLastScheduleEntryPastMaxAttempts(t *testing.T) {
	got := backoffMs(models.StrategyRetryWithBackoff, 99)
	if got != 16000 {
		t.Errorf("expected backoff to hold at 16000ms past the schedule's end, got %dms", got)
	}
}

func TestBackoffMsPerStrategySchedules(t *testing.T) {
	cases := []struct {
		strategy models.Strategy
		attempt  int
		wantMs   int64
	}{
		{models.StrategyClearCacheRetry, 1, 2000},
		{models.StrategyClearCacheRetry, 2, 5000},
		{models.StrategySwitchEndpoint, 1, 1000},
		{models.StrategySwitchEndpoint, 2, 3000},
		{models.StrategySwitchEndpoint, 3, 5000},
		{models.StrategyReduceBatchSize, 1, 1000},
		{models.StrategyReduceBatchSize, 2, 2000},
		{models.StrategyReduceBatchSize, 3, 3000},
		{models.StrategyNotifyAndSkip, 1, 0},
		{models.StrategyFullReset, 1, 5000},
		{models.StrategyEscalateToAgent, 1, 0},
	}
	for _, c := range cases {
		got := backoffMs(c.strategy, c.attempt)
		if got != c.wantMs {
			t.Errorf("%s attempt %d: expected %dms, got %dms", c.strategy, c.attempt, c.wantMs, got)
		}
	}
}

func TestEscalationGraphNextStrategyChain(t *testing.T) {
	cases := []struct {
		strategy models.Strategy
		next     models.Strategy
	}{
		{models.StrategyRetryWithBackoff, models.StrategyClearCacheRetry},
		{models.StrategyClearCacheRetry, models.StrategySwitchEndpoint},
		{models.StrategySwitchEndpoint, models.StrategyReduceBatchSize},
		{models.StrategyReduceBatchSize, models.StrategyNotifyAndSkip},
		{models.StrategyNotifyAndSkip, models.StrategyEscalateToAgent},
		{models.StrategyFullReset, models.StrategyEscalateToAgent},
	}
	for _, c := range cases {
		got := escalationGraph[c.strategy].next
		if got != c.next {
			t.Errorf("%s: expected next strategy %q, got %q", c.strategy, c.next, got)
		}
	}
	if !isTerminal(models.StrategyEscalateToAgent) {
		t.Errorf("expected escalate_to_agent to be terminal")
	}
}
