package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListRepos returns every tracked repo.
func (h *Handler) ListRepos(c *gin.Context) {
	repos, err := h.reposync.ListRepos(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repos": repos, "count": len(repos)})
}

// GetRepo returns a single tracked repo by full name.
func (h *Handler) GetRepo(c *gin.Context) {
	repo, err := h.reposync.GetRepo(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

// TriggerRepoSync queues a high-priority full scrape of a single repo.
func (h *Handler) TriggerRepoSync(c *gin.Context) {
	if err := h.reposync.TriggerSyncRepo(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// TriggerFullSync starts a full fleet sync, returning 409 if one is
// already in progress.
func (h *Handler) TriggerFullSync(c *gin.Context) {
	repos, err := h.reposync.BeginFullSync(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued_repos": len(repos)})
}

// GetSyncStatus reports the sync engine's current orchestration state.
func (h *Handler) GetSyncStatus(c *gin.Context) {
	status, err := h.reposync.GetStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetCohesivenessReport aggregates cohesiveness scores across every
// tracked repo.
func (h *Handler) GetCohesivenessReport(c *gin.Context) {
	report, err := h.reposync.CohesivenessReport(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
