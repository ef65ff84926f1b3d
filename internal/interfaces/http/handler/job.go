package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/scheduler"
	"github.com/ordersync/backend/internal/interfaces/http/dto"
)

// JobScheduler is the part of the scheduler the jobs API drives
type JobScheduler interface {
	Submit(pass integration.SyncPass, trigger scheduler.Trigger) (scheduler.Job, error)
	Jobs(limit int) []scheduler.Job
	Job(id uuid.UUID) (scheduler.Job, error)
}

// JobHandler lists pass jobs and triggers passes on demand
type JobHandler struct {
	scheduler JobScheduler
	logger    *zap.Logger
}

// NewJobHandler creates a JobHandler
func NewJobHandler(s JobScheduler, logger *zap.Logger) *JobHandler {
	return &JobHandler{scheduler: s, logger: logger}
}

// RegisterRoutes mounts the jobs endpoints under rg
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	jobs.GET("", h.List)
	jobs.GET("/:id", h.Get)
	jobs.POST("/:pass", h.Trigger)
}

// List returns active jobs then recent history. ?limit bounds the history.
func (h *JobHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_LIMIT", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewJobResponses(h.scheduler.Jobs(limit))))
}

// Get returns one job
func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.CodeInvalidID, "job id must be a UUID"))
		return
	}
	job, err := h.scheduler.Job(id)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.CodeNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewJobResponse(job)))
}

// Trigger queues a run of the named pass and answers 202 with the job
func (h *JobHandler) Trigger(c *gin.Context) {
	pass := integration.SyncPass(c.Param("pass"))
	job, err := h.scheduler.Submit(pass, scheduler.TriggerManual)
	switch {
	case err == nil:
		h.logger.Info("Pass triggered over HTTP",
			zap.String("pass", pass.String()),
			zap.String("job_id", job.ID.String()),
		)
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.NewJobResponse(job)))
	case errors.Is(err, ordersync.ErrUnknownPass):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.CodeUnknownPass, "unknown pass "+strconv.Quote(pass.String())))
	case errors.Is(err, scheduler.ErrPassAlreadyQueued):
		c.JSON(http.StatusConflict, dto.Response{
			Success: false,
			Data:    dto.NewJobResponse(job),
			Error:   &dto.ErrorInfo{Code: dto.CodePassActive, Message: err.Error()},
		})
	case errors.Is(err, scheduler.ErrJobQueueFull):
		c.JSON(http.StatusTooManyRequests, dto.NewErrorResponse(dto.CodeQueueFull, err.Error()))
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(dto.CodeNotRunning, err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.CodeInternalError, "failed to queue pass"))
	}
}
