// Package reposync implements the Repo Sync Engine: it orchestrates
// full and incremental scrapes of the tracked repository fleet, owns the
// canonical RepoData records, and triggers cohesiveness scoring.
package reposync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/apperr"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/clockid"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

const stateKey = "repo_sync_engine"

// repoCacheTTL and cohesivenessCacheTTL bound how long the KV mirror of a
// repo's canonical record and its cohesiveness snapshot stay fresh before
// a reader should treat them as stale.
const (
	repoCacheTTL         = time.Hour
	cohesivenessCacheTTL = time.Hour
)

// HealingEscalator is the collaborator triggerCohesivenessCheck hands
// critical auto-fixable cohesiveness issues to. Defined locally (rather
// than importing internal/processors' HealingMessage) because processors
// already imports reposync; an adapter built in cmd/scheduler bridges the
// two without an import cycle.
type HealingEscalator interface {
	CreateTaskWithOverride(ctx context.Context, jobID string, issue models.HealingIssue, strategy models.Strategy, maxAttempts int) (*models.HealingTask, error)
	EnqueueHealing(ctx context.Context, taskID string) error
}

// Scraper is the external collaborator that retrieves a repository's
// structure from its source host. Implementations wrap an HTTP client in
// production and a fixture in tests.
type Scraper interface {
	// ScrapeRepo fetches the current structure for a repo. prevETag, if
	// non-empty, lets the implementation short-circuit with
	// (nil, prevETag, nil) when nothing changed.
	ScrapeRepo(ctx context.Context, fullName, prevETag string) (*models.RepoStructure, string, error)
	// ListOrgRepos lists every repository name under the tracked org.
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
}

// state is the engine's entire persisted state.
type state struct {
	Repos        map[string]*models.RepoData `json:"repos"`
	InProgress   bool                        `json:"in_progress"`
	LastFullSync time.Time                   `json:"last_full_sync"`
	LastErrors   []string                    `json:"last_errors"`
}

// Engine owns the tracked repository fleet and its sync orchestration.
type Engine struct {
	scraper     Scraper
	durable     store.Durable
	kv          store.KV
	scrapeQueue queue.Queue[models.ScrapeTask]
	clock       clockid.Clock
	org         string
	log         zerolog.Logger

	mu        sync.RWMutex
	state     state
	escalator HealingEscalator
}

// New creates an Engine and hydrates it from durable storage. kv mirrors
// canonical repo and cohesiveness records for read-heavy API traffic; it
// may be nil, in which case no mirror is written. scrapeQueue backs
// TriggerSyncRepo's single-repo enqueue path and is required.
func New(ctx context.Context, scraper Scraper, durable store.Durable, kv store.KV, scrapeQueue queue.Queue[models.ScrapeTask], clock clockid.Clock, org string, log zerolog.Logger) (*Engine, error) {
	e := &Engine{
		scraper:     scraper,
		durable:     durable,
		kv:          kv,
		scrapeQueue: scrapeQueue,
		clock:       clock,
		org:         org,
		log:         log.With().Str("subsystem", "reposync").Logger(),
		state:       state{Repos: make(map[string]*models.RepoData)},
	}
	found, err := durable.Load(ctx, stateKey, &e.state)
	if err != nil {
		return nil, apperr.Internal(err, "reposync: hydrate state")
	}
	if !found || e.state.Repos == nil {
		e.state.Repos = make(map[string]*models.RepoData)
	}
	return e, nil
}

// SetEscalator wires the self-healer escalation path in after construction,
// breaking the Engine/Healer constructor cycle (the healer's remediator
// needs the engine, so the engine can't require the healer at New time).
func (e *Engine) SetEscalator(escalator HealingEscalator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escalator = escalator
}

func (e *Engine) persistLocked(ctx context.Context) error {
	if err := e.durable.Save(ctx, stateKey, &e.state); err != nil {
		return apperr.Internal(err, "reposync: persist state")
	}
	return nil
}

// ListRepos returns every tracked repo, sorted by full name.
func (e *Engine) ListRepos(ctx context.Context) ([]*models.RepoData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*models.RepoData, 0, len(e.state.Repos))
	for _, r := range e.state.Repos {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// GetRepo returns a single tracked repo by full name.
func (e *Engine) GetRepo(ctx context.Context, fullName string) (*models.RepoData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.state.Repos[fullName]
	if !ok {
		return nil, apperr.NotFound("repo %q not found", fullName)
	}
	cp := *r
	return &cp, nil
}

// GetStatus reports the engine's current orchestration state.
func (e *Engine) GetStatus(ctx context.Context) (models.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return models.SyncStatus{
		InProgress:   e.state.InProgress,
		LastFullSync: e.state.LastFullSync,
		RepoCount:    len(e.state.Repos),
		LastErrors:   append([]string(nil), e.state.LastErrors...),
	}, nil
}

// BeginFullSync marks a full sync as in progress, returning a conflict
// error if one is already running. It returns the list of org repos to
// scrape so the caller can enqueue individual ScrapeTask messages.
func (e *Engine) BeginFullSync(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	if e.state.InProgress {
		e.mu.Unlock()
		return nil, apperr.Conflict("a full sync is already in progress")
	}
	e.state.InProgress = true
	e.state.LastErrors = nil
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	repos, err := e.scraper.ListOrgRepos(ctx, e.org)
	if err != nil {
		e.mu.Lock()
		e.state.InProgress = false
		e.state.LastErrors = append(e.state.LastErrors, fmt.Sprintf("list org repos: %v", err))
		_ = e.persistLocked(ctx)
		e.mu.Unlock()
		return nil, apperr.TransientUpstream(err, "reposync: list org repos for %s", e.org)
	}
	e.log.Info().Int("repo_count", len(repos)).Msg("full sync started")
	return repos, nil
}

// CompleteFullSync marks the in-progress full sync as finished, recording
// any accumulated errors.
func (e *Engine) CompleteFullSync(ctx context.Context, errs []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.InProgress = false
	e.state.LastFullSync = e.clock.Now()
	e.state.LastErrors = errs
	e.log.Info().Int("error_count", len(errs)).Msg("full sync complete")
	return e.persistLocked(ctx)
}

// SyncRepo scrapes a single repo, scores its cohesiveness, and hands the
// resulting record to UpdateRepo for the actual upsert. It returns
// (nil, nil) if the scraper reports no change via ETag.
func (e *Engine) SyncRepo(ctx context.Context, fullName string) (*models.RepoData, error) {
	e.mu.RLock()
	prevETag := ""
	var existing *models.RepoData
	if r, ok := e.state.Repos[fullName]; ok {
		prevETag = r.ETag
		existing = r
	}
	e.mu.RUnlock()

	structure, etag, err := e.scraper.ScrapeRepo(ctx, fullName, prevETag)
	if err != nil {
		return nil, apperr.TransientUpstream(err, "reposync: scrape %s", fullName)
	}
	if structure == nil {
		return nil, nil
	}

	cohesiveness := Score(*structure)
	if existing != nil {
		cohesiveness.LastChecked = existing.Cohesiveness.LastChecked
	}

	return e.UpdateRepo(ctx, models.RepoData{
		FullName:     fullName,
		Structure:    *structure,
		Cohesiveness: cohesiveness,
		ETag:         etag,
	})
}

// UpdateRepo upserts a repo's canonical record, the operation the
// scraper's ingestion path calls once it has a structure and a score to
// persist. Stamps LastScrapedAt and mirrors the result to the shared KV
// cache under repo:{fullName} so read-heavy API traffic doesn't need to
// go through the engine's lock.
func (e *Engine) UpdateRepo(ctx context.Context, data models.RepoData) (*models.RepoData, error) {
	e.mu.Lock()
	data.LastScrapedAt = e.clock.Now()
	e.state.Repos[data.FullName] = &data
	if err := e.persistLocked(ctx); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	cp := data
	e.mu.Unlock()

	e.mirrorRepoToCache(ctx, cp)

	out := cp
	return &out, nil
}

func (e *Engine) mirrorRepoToCache(ctx context.Context, repo models.RepoData) {
	if e.kv == nil {
		return
	}
	raw, err := json.Marshal(repo)
	if err != nil {
		e.log.Warn().Err(err).Str("repo", repo.FullName).Msg("failed to marshal repo for cache mirror")
		return
	}
	if err := e.kv.Set(ctx, "repo:"+repo.FullName, string(raw), repoCacheTTL); err != nil {
		e.log.Warn().Err(err).Str("repo", repo.FullName).Msg("failed to mirror repo to cache")
	}
}

// TriggerSyncRepo enqueues a single high-priority full scrape for the
// named repo and returns immediately; the scrape processor performs the
// actual sync asynchronously.
func (e *Engine) TriggerSyncRepo(ctx context.Context, repoName string) error {
	return e.scrapeQueue.Enqueue(ctx, models.ScrapeTask{
		RepoName:   repoName,
		ScrapeType: "full",
		Priority:   models.PriorityHigh,
	})
}

// TriggerCohesivenessCheck recomputes cohesiveness for every tracked
// repo from its last-known structure, writes a per-repo KV snapshot, and
// escalates any repo carrying a critical auto-fixable issue to the
// self-healer.
func (e *Engine) TriggerCohesivenessCheck(ctx context.Context) error {
	e.mu.RLock()
	names := make([]string, 0, len(e.state.Repos))
	for name := range e.state.Repos {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		e.mu.Lock()
		repo, ok := e.state.Repos[name]
		if !ok {
			e.mu.Unlock()
			continue
		}
		cohesiveness := Score(repo.Structure)
		cohesiveness.LastChecked = e.clock.Now()
		repo.Cohesiveness = cohesiveness
		if err := e.persistLocked(ctx); err != nil {
			e.mu.Unlock()
			return err
		}
		cp := *repo
		escalator := e.escalator
		e.mu.Unlock()

		if e.kv != nil {
			raw, err := json.Marshal(cp.Cohesiveness)
			if err != nil {
				e.log.Warn().Err(err).Str("repo", cp.FullName).Msg("failed to marshal cohesiveness for cache mirror")
			} else if err := e.kv.Set(ctx, "cohesiveness:"+cp.FullName, string(raw), cohesivenessCacheTTL); err != nil {
				e.log.Warn().Err(err).Str("repo", cp.FullName).Msg("failed to write cohesiveness snapshot")
			}
		}

		if escalator == nil {
			continue
		}
		critical := criticalAutoFixable(cp.Cohesiveness.Issues)
		if len(critical) == 0 {
			continue
		}

		task, err := escalator.CreateTaskWithOverride(ctx, "", models.HealingIssue{
			Type:        "cohesiveness_critical",
			Severity:    "high",
			Description: fmt.Sprintf("repo %s has %d critical auto-fixable cohesiveness issue(s)", cp.FullName, len(critical)),
			Context:     map[string]interface{}{"repo": cp.FullName, "issues": critical},
		}, models.StrategyEscalateToAgent, 1)
		if err != nil {
			e.log.Error().Err(err).Str("repo", cp.FullName).Msg("failed to create healing task for cohesiveness issue")
			continue
		}
		if err := escalator.EnqueueHealing(ctx, task.ID); err != nil {
			e.log.Error().Err(err).Str("repo", cp.FullName).Str("task_id", task.ID).Msg("failed to enqueue healing task")
		}
	}
	return nil
}

// CohesivenessReport aggregates the current scores across every tracked repo.
func (e *Engine) CohesivenessReport(ctx context.Context) (models.CohesivenessReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	report := models.CohesivenessReport{BySeverity: make(map[string]int)}
	var total int
	for _, r := range e.state.Repos {
		report.Repos = append(report.Repos, models.RepoScoreSummary{FullName: r.FullName, Score: r.Cohesiveness})
		total += r.Cohesiveness.Overall
		for _, issue := range r.Cohesiveness.Issues {
			report.BySeverity[string(issue.Severity)]++
			if issue.AutoFixable {
				report.AutoFixableCount++
			} else {
				report.NotAutoFixableCount++
			}
		}
	}
	if len(report.Repos) > 0 {
		report.AverageOverall = float64(total) / float64(len(report.Repos))
	}
	sort.Slice(report.Repos, func(i, j int) bool { return report.Repos[i].FullName < report.Repos[j].FullName })
	return report, nil
}
