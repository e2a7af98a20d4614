package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/services"
)

type ArticleHandler struct {
	articleService services.ArticleService
}

func NewArticleHandler(articleService services.ArticleService) *ArticleHandler {
	return &ArticleHandler{articleService: articleService}
}

func (ah *ArticleHandler) Create(c *gin.Context) {
	var req struct {
		ProjectID uuid.UUID `json:"project_id"`
		KeywordID uuid.UUID `json:"keyword_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	article, err := ah.articleService.Create(c.Request.Context(), middleware.UserID(c), req.ProjectID, req.KeywordID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, article)
}

func (ah *ArticleHandler) Get(c *gin.Context) {
	articleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	article, err := ah.articleService.Get(c.Request.Context(), middleware.UserID(c), articleID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, article)
}

func (ah *ArticleHandler) ListByProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	articles, err := ah.articleService.ListByProject(c.Request.Context(), middleware.UserID(c), projectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, articles)
}

func (ah *ArticleHandler) Retry(c *gin.Context) {
	articleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	article, err := ah.articleService.Retry(c.Request.Context(), middleware.UserID(c), articleID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, article)
}
