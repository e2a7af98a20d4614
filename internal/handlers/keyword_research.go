package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/services"
)

type KeywordResearchHandler struct {
	researchService services.KeywordResearchService
}

func NewKeywordResearchHandler(researchService services.KeywordResearchService) *KeywordResearchHandler {
	return &KeywordResearchHandler{researchService: researchService}
}

func (kh *KeywordResearchHandler) Start(c *gin.Context) {
	var req struct {
		ProjectID uuid.UUID `json:"project_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	research, err := kh.researchService.Start(c.Request.Context(), middleware.UserID(c), req.ProjectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, research)
}

func (kh *KeywordResearchHandler) Get(c *gin.Context) {
	researchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	research, err := kh.researchService.Get(c.Request.Context(), middleware.UserID(c), researchID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, research)
}

func (kh *KeywordResearchHandler) ListByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	runs, err := kh.researchService.ListByProject(c.Request.Context(), middleware.UserID(c), projectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, runs)
}

func (kh *KeywordResearchHandler) ListKeywords(c *gin.Context) {
	researchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	keywords, err := kh.researchService.ListKeywords(c.Request.Context(), middleware.UserID(c), researchID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, keywords)
}

func (kh *KeywordResearchHandler) Retry(c *gin.Context) {
	researchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	research, err := kh.researchService.Retry(c.Request.Context(), middleware.UserID(c), researchID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, research)
}
