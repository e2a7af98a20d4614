package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/apierr"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
)

// ArticleService creates article rows and enqueues generation runs. The
// pipeline itself runs in the worker; this layer only manages entity rows
// and the queue.
type ArticleService interface {
	Create(ctx context.Context, userID, projectID, keywordID uuid.UUID) (*types.Article, error)
	Get(ctx context.Context, userID, articleID uuid.UUID) (*types.Article, error)
	ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]*types.Article, error)
	Retry(ctx context.Context, userID, articleID uuid.UUID) (*types.Article, error)
}

type articleService struct {
	log         *logger.Logger
	articleRepo repos.ArticleRepo
	keywordRepo repos.KeywordRepo
	projects    ProjectService
	jobs        JobService
}

func NewArticleService(baseLog *logger.Logger, articleRepo repos.ArticleRepo, keywordRepo repos.KeywordRepo, projects ProjectService, jobs JobService) ArticleService {
	return &articleService{
		log:         baseLog.With("service", "ArticleService"),
		articleRepo: articleRepo,
		keywordRepo: keywordRepo,
		projects:    projects,
		jobs:        jobs,
	}
}

func (s *articleService) Create(ctx context.Context, userID, projectID, keywordID uuid.UUID) (*types.Article, error) {
	project, err := s.projects.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	keyword, err := s.keywordRepo.GetByID(dbctx.Context{Ctx: ctx}, keywordID)
	if err != nil {
		return nil, err
	}
	if keyword == nil || keyword.ProjectID != project.ID {
		return nil, apierr.New(http.StatusNotFound, "keyword_not_found", fmt.Errorf("keyword not found"))
	}

	article, err := s.articleRepo.Create(dbctx.Context{Ctx: ctx}, &types.Article{
		ProjectID: project.ID,
		KeywordID: keyword.ID,
		Status:    types.ArticleStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.jobs.Enqueue(ctx, userID, types.JobTypeArticleGenerate, "article", article.ID, map[string]any{
		"articleID": article.ID,
	}); err != nil {
		return nil, err
	}
	s.log.Info("Created article", "articleID", article.ID, "keyword", keyword.Term)
	return article, nil
}

func (s *articleService) Get(ctx context.Context, userID, articleID uuid.UUID) (*types.Article, error) {
	article, err := s.articleRepo.GetByID(dbctx.Context{Ctx: ctx}, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, apierr.New(http.StatusNotFound, "article_not_found", fmt.Errorf("article not found"))
	}
	if _, err := s.projects.Get(ctx, userID, article.ProjectID); err != nil {
		return nil, apierr.New(http.StatusNotFound, "article_not_found", fmt.Errorf("article not found"))
	}
	return article, nil
}

func (s *articleService) ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]*types.Article, error) {
	if _, err := s.projects.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.articleRepo.ListByProject(dbctx.Context{Ctx: ctx}, projectID)
}

// Retry re-queues a failed article. The row is reset to pending with its
// error cleared; accumulated cost is kept because the money is already spent.
func (s *articleService) Retry(ctx context.Context, userID, articleID uuid.UUID) (*types.Article, error) {
	article, err := s.Get(ctx, userID, articleID)
	if err != nil {
		return nil, err
	}
	ok, err := s.articleRepo.UpdateFieldsWhereStatus(dbctx.Context{Ctx: ctx}, article.ID,
		[]string{types.ArticleStatusFailed},
		map[string]interface{}{
			"status":        types.ArticleStatusPending,
			"error_message": "",
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.New(http.StatusConflict, "not_retryable", fmt.Errorf("article is not in a failed state"))
	}

	if _, err := s.jobs.Enqueue(ctx, userID, types.JobTypeArticleGenerate, "article", article.ID, map[string]any{
		"articleID": article.ID,
	}); err != nil {
		return nil, err
	}
	article.Status = types.ArticleStatusPending
	article.ErrorMessage = ""
	return article, nil
}
