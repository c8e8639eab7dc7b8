package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/coordinator"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/healer"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/queue"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/reposync"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/scraper"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/internal/store"
	"github.com/BlackRoad-OS/blackroad-content-scheduler/pkg/models"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type seqIDs struct{ n int }

func (s *seqIDs) NewID(prefix string) string {
	s.n++
	return prefix + "-fixed-" + strconv.Itoa(s.n)
}

type noopRemediator struct{}

func (noopRemediator) Remediate(ctx context.Context, task *models.HealingTask) (bool, string, error) {
	return false, "", nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	clock := fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	c, err := coordinator.New(ctx, store.NewMemDurable(), clock, &seqIDs{}, zerolog.Nop())
	require.NoError(t, err)

	scrapeQueue := queue.NewMemQueue[models.ScrapeTask](func() string { return "scrape-msg" })
	e, err := reposync.New(ctx, scraper.NewSimulated(), store.NewMemDurable(), store.NewMemKV(), scrapeQueue, clock, "BlackRoad-OS", zerolog.Nop())
	require.NoError(t, err)

	h, err := healer.New(ctx, noopRemediator{}, store.NewMemDurable(), clock, &seqIDs{}, zerolog.Nop())
	require.NoError(t, err)

	handler := NewHandler(c, e, h)
	return NewRouter(handler, []string{"*"})
}

func TestServiceHealth(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetJob(t *testing.T) {
	router := newTestRouter(t)

	body := `{"type":"scrape_repo","priority":"high"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.ID, nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestGetJobNotFound(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/does-not-exist", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerRepoSyncQueuesScrapeTask(t *testing.T) {
	router := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/repos/site-landing/sync", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestTriggerFullSyncConflict(t *testing.T) {
	router := newTestRouter(t)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/repo-sync", nil)
	router.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusAccepted, w1.Code)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/repo-sync", nil)
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusConflict, w2.Code)
}
