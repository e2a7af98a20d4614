package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/apierr"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
)

type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, name, domain string, targetWordCount int) (*types.Project, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error)
	AddCompetitor(ctx context.Context, userID, projectID uuid.UUID, competitorURL string) (*types.Project, error)
}

type projectService struct {
	log         *logger.Logger
	projectRepo repos.ProjectRepo
}

func NewProjectService(baseLog *logger.Logger, projectRepo repos.ProjectRepo) ProjectService {
	return &projectService{
		log:         baseLog.With("service", "ProjectService"),
		projectRepo: projectRepo,
	}
}

func (s *projectService) Create(ctx context.Context, userID uuid.UUID, name, domain string, targetWordCount int) (*types.Project, error) {
	name = strings.TrimSpace(name)
	domain = strings.TrimSpace(domain)
	if name == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_name", fmt.Errorf("project name required"))
	}
	if domain == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_domain", fmt.Errorf("project domain required"))
	}
	if targetWordCount <= 0 {
		targetWordCount = 2000
	}
	project, err := s.projectRepo.Create(dbctx.Context{Ctx: ctx}, &types.Project{
		UserID:          userID,
		Name:            name,
		Domain:          domain,
		TargetWordCount: targetWordCount,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Created project", "projectID", project.ID, "domain", domain)
	return project, nil
}

func (s *projectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetByID(dbctx.Context{Ctx: ctx}, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil || project.UserID != userID {
		return nil, apierr.New(http.StatusNotFound, "project_not_found", fmt.Errorf("project not found"))
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	return s.projectRepo.ListByUser(dbctx.Context{Ctx: ctx}, userID)
}

func (s *projectService) AddCompetitor(ctx context.Context, userID, projectID uuid.UUID, competitorURL string) (*types.Project, error) {
	competitorURL = strings.TrimSpace(competitorURL)
	if competitorURL == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_url", fmt.Errorf("competitor url required"))
	}
	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	urls := project.CompetitorURLs()
	for _, u := range urls {
		if strings.EqualFold(u, competitorURL) {
			return project, nil
		}
	}
	urls = append(urls, competitorURL)
	raw, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateFields(dbctx.Context{Ctx: ctx}, project.ID, map[string]interface{}{
		"competitors": datatypes.JSON(raw),
	}); err != nil {
		return nil, err
	}
	project.Competitors = datatypes.JSON(raw)
	return project, nil
}
