package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/backend/internal/scheduler"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// JobResponse describes a registered periodic task
type JobResponse struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

// JobsController exposes the periodic tasks to administrators
type JobsController struct {
	scheduler *scheduler.Scheduler
	logger    *utils.Logger
}

// NewJobsController creates a new jobs controller
func NewJobsController(s *scheduler.Scheduler, logger *utils.Logger) *JobsController {
	return &JobsController{
		scheduler: s,
		logger:    logger.Named("jobs_controller"),
	}
}

// RegisterRoutes registers the job routes with the admin group
func (jc *JobsController) RegisterRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("", jc.ListJobs)
		jobs.POST("/:name/run", jc.RunJob)
	}
}

// ListJobs returns every registered task with its next trigger
// @Summary List periodic jobs
// @Tags jobs
// @Produce json
// @Security Bearer
// @Success 200 {array} JobResponse
// @Router /admin/jobs [get]
func (jc *JobsController) ListJobs(c *gin.Context) {
	names := jc.scheduler.Tasks()
	jobs := make([]JobResponse, 0, len(names))
	for _, name := range names {
		job := JobResponse{Name: name}
		if next, ok := jc.scheduler.Next(name); ok && !next.IsZero() {
			job.NextRun = &next
		}
		jobs = append(jobs, job)
	}
	c.JSON(http.StatusOK, jobs)
}

// RunJob runs a task immediately and waits for it
// @Summary Run a job now
// @Tags jobs
// @Produce json
// @Security Bearer
// @Param name path string true "Job name"
// @Success 200 {object} JobResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /admin/jobs/{name}/run [post]
func (jc *JobsController) RunJob(c *gin.Context) {
	name := c.Param("name")
	start := time.Now()

	if err := jc.scheduler.RunNow(c.Request.Context(), name); err != nil {
		utils.HandleError(c, err, jc.logger)
		return
	}

	jc.logger.Info("Job run on demand", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	c.JSON(http.StatusOK, JobResponse{Name: name})
}
