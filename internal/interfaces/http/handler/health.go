package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldops/backend/internal/infrastructure/scheduler"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger checks a backing dependency
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SchedulerStatus is the read-only view of the reconcile scheduler
type SchedulerStatus interface {
	IsRunning() bool
	IsSweeping() bool
	LastSweep() *scheduler.SweepResult
	SkippedSweeps() int64
	Interval() time.Duration
}

var _ SchedulerStatus = (*scheduler.ReconcileScheduler)(nil)

// HealthHandler serves liveness and scheduler status
type HealthHandler struct {
	BaseHandler
	db          Pinger
	scheduler   SchedulerStatus
	pingTimeout time.Duration
	startTime   time.Time
}

// NewHealthHandler creates a HealthHandler. sched may be nil when the
// reconciler is disabled.
func NewHealthHandler(db Pinger, sched SchedulerStatus) *HealthHandler {
	return &HealthHandler{
		db:          db,
		scheduler:   sched,
		pingTimeout: 2 * time.Second,
		startTime:   time.Now(),
	}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// SchedulerStatusResponse is the scheduler status payload
type SchedulerStatusResponse struct {
	Enabled       bool                   `json:"enabled"`
	Running       bool                   `json:"running"`
	Sweeping      bool                   `json:"sweeping"`
	Interval      string                 `json:"interval,omitempty"`
	SkippedSweeps int64                  `json:"skipped_sweeps"`
	LastSweep     *scheduler.SweepResult `json:"last_sweep,omitempty"`
}

// Health godoc
// @Summary      Liveness and database reachability
// @Tags         health
// @Produce      json
// @Success      200 {object} dto.Response{data=HealthResponse}
// @Failure      503 {object} dto.Response{data=HealthResponse}
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.pingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
	}
	h.Success(c, resp)
}

// Scheduler godoc
// @Summary      Reconcile scheduler status
// @Tags         health
// @Produce      json
// @Success      200 {object} dto.Response{data=SchedulerStatusResponse}
// @Router       /health/scheduler [get]
func (h *HealthHandler) Scheduler(c *gin.Context) {
	if h.scheduler == nil {
		h.Success(c, SchedulerStatusResponse{Enabled: false})
		return
	}
	h.Success(c, SchedulerStatusResponse{
		Enabled:       true,
		Running:       h.scheduler.IsRunning(),
		Sweeping:      h.scheduler.IsSweeping(),
		Interval:      h.scheduler.Interval().String(),
		SkippedSweeps: h.scheduler.SkippedSweeps(),
		LastSweep:     h.scheduler.LastSweep(),
	})
}
