package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/apperr"
)

func (h *Handler) requireHealer(c *gin.Context) bool {
	if h.healer == nil {
		writeError(c, apperr.New(apperr.KindConflict, "self-healing is disabled"))
		return false
	}
	return true
}

// ListHealingTasks returns every healing task.
func (h *Handler) ListHealingTasks(c *gin.Context) {
	if !h.requireHealer(c) {
		return
	}
	tasks, err := h.healer.ListTasks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

// GetHealingTask returns a single healing task by ID.
func (h *Handler) GetHealingTask(c *gin.Context) {
	if !h.requireHealer(c) {
		return
	}
	task, err := h.healer.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetHealerMetrics returns aggregate remediation counters.
func (h *Handler) GetHealerMetrics(c *gin.Context) {
	if !h.requireHealer(c) {
		return
	}
	metrics, err := h.healer.GetMetrics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetHealerHealth reports operational warnings and escalation rate.
func (h *Handler) GetHealerHealth(c *gin.Context) {
	if !h.requireHealer(c) {
		return
	}
	report, err := h.healer.HealthCheck(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
