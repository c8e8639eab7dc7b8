package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/config"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

// dailyReportTTL keeps a month of daily cleanup/sync summaries around for
// operators to diff against.
const dailyReportTTL = 30 * 24 * time.Hour

type dailyReport struct {
	Date           string  `json:"date"`
	RemovedJobs    int     `json:"removed_jobs"`
	AverageOverall float64 `json:"average_overall"`
	AutoFixable    int     `json:"auto_fixable"`
}

// writeDailyReport persists a summary of the day's cleanup and
// cohesiveness state under report:daily:{YYYY-MM-DD} so operators can
// look back over a month of daily runs without re-deriving them.
func writeDailyReport(ctx context.Context, kv store.KV, day time.Time, removedJobs int, report models.CohesivenessReport, log zerolog.Logger) {
	r := dailyReport{
		Date:           day.Format("2006-01-02"),
		RemovedJobs:    removedJobs,
		AverageOverall: report.AverageOverall,
		AutoFixable:    report.AutoFixableCount,
	}
	raw, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal daily report")
		return
	}
	key := "report:daily:" + r.Date
	if err := kv.Set(ctx, key, string(raw), dailyReportTTL); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to persist daily report")
	}
}

// runProcessorLoop repeatedly drains a processor on a fixed interval
// until ctx is cancelled.
func runProcessorLoop(ctx context.Context, name string, interval time.Duration, log zerolog.Logger, drain func(context.Context) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("processor", name).Msg("processor loop stopped")
			return
		case <-ticker.C:
			n, err := drain(ctx)
			if err != nil {
				log.Error().Err(err).Str("processor", name).Msg("drain failed")
				continue
			}
			if n > 0 {
				log.Debug().Str("processor", name).Int("processed", n).Msg("drained queue")
			}
		}
	}
}

// runCronSchedule drives the four wall-clock triggers: a healing check
// every 5 minutes, an incremental scrape every 30 minutes (configurable),
// an hourly cohesiveness check, and a daily full sync with cleanup.
func runCronSchedule(ctx context.Context, log zerolog.Logger, coord *coordinator.Coordinator, engine *reposync.Engine, h *healer.Healer, kv store.KV, scrapeQueue queue.Queue[models.ScrapeTask], cfg *config.Config) {
	healingCheck := time.NewTicker(5 * time.Minute)
	defer healingCheck.Stop()

	incrementalScrape := time.NewTicker(time.Duration(cfg.ScrapeIntervalMinutes) * time.Minute)
	defer incrementalScrape.Stop()

	cohesivenessCheck := time.NewTicker(1 * time.Hour)
	defer cohesivenessCheck.Stop()

	dailyFullSync := time.NewTicker(24 * time.Hour)
	defer dailyFullSync.Stop()

	log.Info().Msg("cron schedule started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("cron schedule stopped")
			return

		case <-healingCheck.C:
			if h == nil {
				continue
			}
			report, err := h.HealthCheck(ctx)
			if err != nil {
				log.Error().Err(err).Msg("healing check failed")
				continue
			}
			if report.Critical {
				log.Warn().Float64("escalation_rate", report.EscalationRate).Msg("healer escalation rate critical")
			}

		case <-incrementalScrape.C:
			repos, err := engine.ListRepos(ctx)
			if err != nil {
				log.Error().Err(err).Msg("incremental scrape: failed to list repos")
				continue
			}
			for _, r := range repos {
				if err := scrapeQueue.Enqueue(ctx, models.ScrapeTask{RepoName: r.FullName, ScrapeType: "incremental", Priority: models.PriorityLow}); err != nil {
					log.Error().Err(err).Str("repo", r.FullName).Msg("failed to enqueue incremental scrape")
				}
			}

		case <-cohesivenessCheck.C:
			if err := engine.TriggerCohesivenessCheck(ctx); err != nil {
				log.Error().Err(err).Msg("cohesiveness check failed")
				continue
			}
			report, err := engine.CohesivenessReport(ctx)
			if err != nil {
				log.Error().Err(err).Msg("cohesiveness report failed")
				continue
			}
			log.Info().Float64("average_overall", report.AverageOverall).Int("auto_fixable", report.AutoFixableCount).Msg("cohesiveness report generated")

		case <-dailyFullSync.C:
			if _, err := engine.BeginFullSync(ctx); err != nil {
				log.Warn().Err(err).Msg("daily full sync skipped")
			}
			removed, err := coord.Cleanup(ctx)
			if err != nil {
				log.Error().Err(err).Msg("daily cleanup failed")
				continue
			}
			log.Info().Int("removed_jobs", removed).Msg("daily cleanup complete")

			if kv != nil {
				report, err := engine.CohesivenessReport(ctx)
				if err != nil {
					log.Error().Err(err).Msg("daily report: cohesiveness report failed")
					continue
				}
				writeDailyReport(ctx, kv, time.Now().UTC(), removed, report, log)
			}
		}
	}
}
