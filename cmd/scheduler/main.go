// Command scheduler runs the BlackRoad content-scheduler control plane:
// the job coordinator, repo sync engine, self-healer, their queue
// processors, and the HTTP API, wired together with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/api"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/clockid"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/config"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/logging"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/processors"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/scraper"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("scheduler", cfg.LogLevel)
	log.Info().Str("environment", cfg.Environment).Str("org", cfg.BlackRoadOrg).Msg("starting content scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var durable store.Durable = store.NewMemDurable()
	pool, poolErr := pgxpool.New(ctx, cfg.DatabaseURL)
	if poolErr != nil {
		log.Warn().Err(poolErr).Msg("failed to connect to postgres, running with in-memory durable store")
	} else {
		defer pool.Close()
		durable = store.NewPgDurable(pool)
		log.Info().Msg("connected to postgres durable store")
	}

	var kv store.KV = store.NewMemKV()
	redisKV, redisErr := store.NewRedisKV(ctx, cfg.RedisURL)
	if redisErr != nil {
		log.Warn().Err(redisErr).Msg("failed to connect to redis, running with in-memory kv cache")
	} else {
		defer redisKV.Close()
		kv = redisKV
		log.Info().Msg("connected to redis kv cache")
	}

	clock := clockid.SystemClock{}
	ids := clockid.UUIDGenerator{}

	coord, err := coordinator.New(ctx, durable, clock, ids, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize job coordinator")
	}

	jobQueue := newJobQueue(redisKV, ids)
	scrapeQueue := newScrapeQueue(redisKV, ids)
	healingQueue := newHealingQueue(redisKV, ids)

	var scr reposync.Scraper = scraper.NewSimulated()
	if cfg.GitHubToken != "" {
		scr = scraper.NewGitHubClient(cfg.GitHubToken)
	}
	engine, err := reposync.New(ctx, scr, durable, kv, scrapeQueue, clock, cfg.BlackRoadOrg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize repo sync engine")
	}

	var selfHealer *healer.Healer
	if cfg.SelfHealEnabled {
		selfHealer, err = healer.New(ctx, &remediator{
			engine:      engine,
			coordinator: coord,
			kv:          kv,
			jobQueue:    jobQueue,
			scrapeQueue: scrapeQueue,
		}, durable, clock, ids, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize self-healer")
		}
		engine.SetEscalator(&healingEscalator{healer: selfHealer, healingQueue: healingQueue})
	}

	jobProcessor := processors.NewJobProcessor(jobQueue, coord, selfHealer, healingQueue, &jobRunner{engine: engine}, log)
	scrapeProcessor := processors.NewScrapeProcessor(scrapeQueue, engine, selfHealer, healingQueue, log)
	healingProcessor := processors.NewHealingProcessor(healingQueue, selfHealer, coord, log)

	handler := api.NewHandler(coord, engine, selfHealer)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go runProcessorLoop(ctx, "job_processor", 5*time.Second, log, func(ctx context.Context) (int, error) {
		return jobProcessor.DrainOnce(ctx, 10)
	})
	go runProcessorLoop(ctx, "scrape_processor", 5*time.Second, log, func(ctx context.Context) (int, error) {
		return scrapeProcessor.DrainOnce(ctx, 10)
	})
	if selfHealer != nil {
		go runProcessorLoop(ctx, "healing_processor", 5*time.Second, log, func(ctx context.Context) (int, error) {
			return healingProcessor.DrainOnce(ctx, 10)
		})
	}

	go runCronSchedule(ctx, log, coord, engine, selfHealer, kv, scrapeQueue, cfg)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("content scheduler ready")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down content scheduler")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("content scheduler stopped")
}

func newJobQueue(kv *store.RedisKV, ids clockid.IDGenerator) queue.Queue[processors.JobMessage] {
	if kv == nil {
		return queue.NewMemQueue[processors.JobMessage](func() string { return ids.NewID("msg") })
	}
	return queue.NewRedisQueue[processors.JobMessage](kv.Client(), "jobs", func() string { return ids.NewID("msg") })
}

func newScrapeQueue(kv *store.RedisKV, ids clockid.IDGenerator) queue.Queue[models.ScrapeTask] {
	if kv == nil {
		return queue.NewMemQueue[models.ScrapeTask](func() string { return ids.NewID("msg") })
	}
	return queue.NewRedisQueue[models.ScrapeTask](kv.Client(), "scrape_tasks", func() string { return ids.NewID("msg") })
}

func newHealingQueue(kv *store.RedisKV, ids clockid.IDGenerator) queue.Queue[processors.HealingMessage] {
	if kv == nil {
		return queue.NewMemQueue[processors.HealingMessage](func() string { return ids.NewID("msg") })
	}
	return queue.NewRedisQueue[processors.HealingMessage](kv.Client(), "healing_tasks", func() string { return ids.NewID("msg") })
}
