package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presence-service/internal/job"
	"presence-service/internal/response"
)

// JobRunner runs registered jobs by name.
type JobRunner interface {
	Run(ctx context.Context, name string) (*job.Result, error)
	List() []job.JobInfo
}

type JobHandler struct {
	runner JobRunner
	logger *zap.Logger
}

func NewJobHandler(runner JobRunner, logger *zap.Logger) *JobHandler {
	return &JobHandler{runner: runner, logger: logger}
}

// RunJob executes a job synchronously and returns its result. The run is not
// cancelled when the caller disconnects.
// @Router /internal/jobs/{name}/run [post]
func (h *JobHandler) RunJob(c *gin.Context) {
	name := c.Param("name")

	result, err := h.runner.Run(context.WithoutCancel(c.Request.Context()), name)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			response.SendError(c, http.StatusNotFound, response.ErrCodeNotFound, "Job not found")
		case errors.Is(err, job.ErrJobRunning):
			response.SendError(c, http.StatusConflict, response.ErrCodeConflict, "Job is already running")
		default:
			h.logger.Error("Job run failed", zap.String("job", name), zap.Error(err))
			response.SendError(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		}
		return
	}

	if result.Summary != nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"summary": result.Summary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"processed":            result.Processed,
		"notificationsCreated": result.NotificationsCreated,
	})
}

// @Router /internal/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	response.SendSuccess(c, http.StatusOK, h.runner.List())
}
