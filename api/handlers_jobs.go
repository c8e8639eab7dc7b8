package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/apperr"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

func writeError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), apperr.ToBody(err))
}

type createJobRequest struct {
	Type       models.JobType         `json:"type" binding:"required"`
	Priority   models.JobPriority     `json:"priority"`
	Payload    map[string]interface{} `json:"payload"`
	MaxRetries int                    `json:"max_retries"`
}

// ListJobs returns jobs, optionally filtered by status and type query params.
func (h *Handler) ListJobs(c *gin.Context) {
	status := models.JobStatus(c.Query("status"))
	jobType := models.JobType(c.Query("type"))

	jobs, err := h.coordinator.ListJobs(c.Request.Context(), status, jobType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// CreateJob registers a new job from the request body.
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	job, err := h.coordinator.CreateJob(c.Request.Context(), req.Type, req.Priority, req.Payload, req.MaxRetries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// GetJob returns a single job by ID.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.coordinator.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob removes a job from the registry.
func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.coordinator.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetJobMetrics returns aggregate job counters.
func (h *Handler) GetJobMetrics(c *gin.Context) {
	metrics, err := h.coordinator.GetMetrics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}
