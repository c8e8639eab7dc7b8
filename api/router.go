// Package api implements the HTTP adapter: job, repository, and healing
// endpoints backed by the coordinator, sync engine, and healer.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
)

// Handler holds references to every component the API surfaces.
type Handler struct {
	coordinator *coordinator.Coordinator
	reposync    *reposync.Engine
	healer      *healer.Healer
	startTime   time.Time
}

// NewHandler creates a Handler wired to the three stateful components.
func NewHandler(c *coordinator.Coordinator, r *reposync.Engine, h *healer.Healer) *Handler {
	return &Handler{coordinator: c, reposync: r, healer: h, startTime: time.Now().UTC()}
}

// NewRouter builds the gin.Engine with CORS, request logging, and every
// route group registered.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	r.GET("/health", h.ServiceHealth)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.ListJobs)
			jobs.POST("", h.CreateJob)
			jobs.GET("/:id", h.GetJob)
			jobs.DELETE("/:id", h.DeleteJob)
		}
		v1.GET("/job-metrics", h.GetJobMetrics)

		repos := v1.Group("/repos")
		{
			repos.GET("", h.ListRepos)
			repos.GET("/:name", h.GetRepo)
			repos.POST("/:name/sync", h.TriggerRepoSync)
		}
		repoSync := v1.Group("/repo-sync")
		{
			repoSync.POST("", h.TriggerFullSync)
			repoSync.GET("/status", h.GetSyncStatus)
		}
		v1.GET("/cohesiveness", h.GetCohesivenessReport)

		healing := v1.Group("/healing")
		{
			healing.GET("/tasks", h.ListHealingTasks)
			healing.GET("/tasks/:id", h.GetHealingTask)
			healing.GET("/metrics", h.GetHealerMetrics)
			healing.GET("/health", h.GetHealerHealth)
		}
	}

	return r
}

// ServiceHealth reports liveness and process uptime.
func (h *Handler) ServiceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "blackroad-content-scheduler",
		"uptime":  time.Since(h.startTime).String(),
	})
}
