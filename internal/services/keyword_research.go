package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/apierr"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
)

type KeywordResearchService interface {
	Start(ctx context.Context, userID, projectID uuid.UUID) (*types.KeywordResearch, error)
	Get(ctx context.Context, userID, researchID uuid.UUID) (*types.KeywordResearch, error)
	ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]*types.KeywordResearch, error)
	ListKeywords(ctx context.Context, userID, researchID uuid.UUID) ([]*types.Keyword, error)
	Retry(ctx context.Context, userID, researchID uuid.UUID) (*types.KeywordResearch, error)
}

type keywordResearchService struct {
	log          *logger.Logger
	researchRepo repos.KeywordResearchRepo
	keywordRepo  repos.KeywordRepo
	projects     ProjectService
	jobs         JobService
}

func NewKeywordResearchService(baseLog *logger.Logger, researchRepo repos.KeywordResearchRepo, keywordRepo repos.KeywordRepo, projects ProjectService, jobs JobService) KeywordResearchService {
	return &keywordResearchService{
		log:          baseLog.With("service", "KeywordResearchService"),
		researchRepo: researchRepo,
		keywordRepo:  keywordRepo,
		projects:     projects,
		jobs:         jobs,
	}
}

func (s *keywordResearchService) Start(ctx context.Context, userID, projectID uuid.UUID) (*types.KeywordResearch, error) {
	project, err := s.projects.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	research, err := s.researchRepo.Create(dbctx.Context{Ctx: ctx}, &types.KeywordResearch{
		ProjectID: project.ID,
		Status:    types.ResearchStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.jobs.Enqueue(ctx, userID, types.JobTypeKeywordResearch, "keyword_research", research.ID, map[string]any{
		"keywordResearchID": research.ID,
	}); err != nil {
		return nil, err
	}
	s.log.Info("Started keyword research", "researchID", research.ID, "projectID", project.ID)
	return research, nil
}

func (s *keywordResearchService) Get(ctx context.Context, userID, researchID uuid.UUID) (*types.KeywordResearch, error) {
	research, err := s.researchRepo.GetByID(dbctx.Context{Ctx: ctx}, researchID)
	if err != nil {
		return nil, err
	}
	if research == nil {
		return nil, apierr.New(http.StatusNotFound, "research_not_found", fmt.Errorf("keyword research not found"))
	}
	if _, err := s.projects.Get(ctx, userID, research.ProjectID); err != nil {
		return nil, apierr.New(http.StatusNotFound, "research_not_found", fmt.Errorf("keyword research not found"))
	}
	return research, nil
}

func (s *keywordResearchService) ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]*types.KeywordResearch, error) {
	if _, err := s.projects.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.researchRepo.ListByProject(dbctx.Context{Ctx: ctx}, projectID)
}

func (s *keywordResearchService) ListKeywords(ctx context.Context, userID, researchID uuid.UUID) ([]*types.Keyword, error) {
	research, err := s.Get(ctx, userID, researchID)
	if err != nil {
		return nil, err
	}
	return s.keywordRepo.ListByResearch(dbctx.Context{Ctx: ctx}, research.ID)
}

// Retry resets a terminal run back to pending and re-queues it. The progress
// log and error are cleared so the new run starts from a clean transcript;
// accumulated cost survives.
func (s *keywordResearchService) Retry(ctx context.Context, userID, researchID uuid.UUID) (*types.KeywordResearch, error) {
	research, err := s.Get(ctx, userID, researchID)
	if err != nil {
		return nil, err
	}
	ok, err := s.researchRepo.UpdateFieldsWhereStatus(dbctx.Context{Ctx: ctx}, research.ID,
		[]string{types.ResearchStatusFailed, types.ResearchStatusCompleted},
		map[string]interface{}{
			"status":        types.ResearchStatusPending,
			"error_message": "",
			"progress_log":  datatypes.JSON("[]"),
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.New(http.StatusConflict, "not_retryable", fmt.Errorf("keyword research is still in progress"))
	}

	if _, err := s.jobs.Enqueue(ctx, userID, types.JobTypeKeywordResearch, "keyword_research", research.ID, map[string]any{
		"keywordResearchID": research.ID,
	}); err != nil {
		return nil, err
	}
	research.Status = types.ResearchStatusPending
	research.ErrorMessage = ""
	research.ProgressLog = datatypes.JSON("[]")
	return research, nil
}
