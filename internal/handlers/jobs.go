package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/services"
)

type JobsHandler struct {
	jobService services.JobService
}

func NewJobsHandler(jobService services.JobService) *JobsHandler {
	return &JobsHandler{jobService: jobService}
}

func (jh *JobsHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	job, err := jh.jobService.Get(c.Request.Context(), jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if job == nil || job.OwnerUserID != middleware.UserID(c) {
		RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	RespondOK(c, job)
}

func (jh *JobsHandler) Latest(c *gin.Context) {
	entityType := c.Query("entity_type")
	entityID, err := uuid.Parse(c.Query("entity_id"))
	if err != nil || entityType == "" {
		RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	job, err := jh.jobService.LatestForEntity(c.Request.Context(), middleware.UserID(c), entityType, entityID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if job == nil {
		RespondError(c, http.StatusNotFound, "job_not_found", nil)
		return
	}
	RespondOK(c, job)
}
