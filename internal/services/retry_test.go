package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

type statefulResearchRepo struct {
	research *types.KeywordResearch
}

func (f *statefulResearchRepo) Create(dbc dbctx.Context, r *types.KeywordResearch) (*types.KeywordResearch, error) {
	f.research = r
	return r, nil
}

func (f *statefulResearchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KeywordResearch, error) {
	if f.research == nil || f.research.ID != id {
		return nil, nil
	}
	copy := *f.research
	return &copy, nil
}

func (f *statefulResearchRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.KeywordResearch, error) {
	return nil, nil
}

func (f *statefulResearchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.apply(updates)
	return nil
}

func (f *statefulResearchRepo) UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	match := false
	for _, s := range fromStatuses {
		if f.research != nil && f.research.Status == s {
			match = true
		}
	}
	if !match {
		return false, nil
	}
	f.apply(updates)
	return true, nil
}

func (f *statefulResearchRepo) apply(updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			f.research.Status = v.(string)
		case "error_message":
			f.research.ErrorMessage = v.(string)
		case "progress_log":
			f.research.ProgressLog = v.(datatypes.JSON)
		}
	}
}

type stubKeywordRepo struct{}

func (stubKeywordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Keyword, error) {
	return nil, nil
}

func (stubKeywordRepo) ListByResearch(dbc dbctx.Context, researchID uuid.UUID) ([]*types.Keyword, error) {
	return nil, nil
}

func (stubKeywordRepo) ReplaceForResearch(dbc dbctx.Context, researchID uuid.UUID, keywords []*types.Keyword) error {
	return nil
}

type stubProjectService struct {
	project *types.Project
}

func (s *stubProjectService) Create(ctx context.Context, userID uuid.UUID, name, domain string, targetWordCount int) (*types.Project, error) {
	return s.project, nil
}

func (s *stubProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error) {
	return s.project, nil
}

func (s *stubProjectService) List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	return nil, nil
}

func (s *stubProjectService) AddCompetitor(ctx context.Context, userID, projectID uuid.UUID, competitorURL string) (*types.Project, error) {
	return s.project, nil
}

type recordingJobService struct {
	enqueued []string
}

func (s *recordingJobService) Enqueue(ctx context.Context, ownerUserID uuid.UUID, jobType, entityType string, entityID uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	s.enqueued = append(s.enqueued, jobType)
	return &types.JobRun{ID: uuid.New(), JobType: jobType, Status: types.JobStatusQueued}, nil
}

func (s *recordingJobService) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (s *recordingJobService) LatestForEntity(ctx context.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func TestRetryResetsCompletedResearch(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	userID := uuid.New()
	project := &types.Project{ID: uuid.New(), UserID: userID}
	progressLog := (&types.KeywordResearch{}).AppendLogEntry(types.ProgressEntry{Message: "old run"})
	repo := &statefulResearchRepo{research: &types.KeywordResearch{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		Status:       types.ResearchStatusCompleted,
		ErrorMessage: "",
		ProgressLog:  progressLog,
	}}
	jobs := &recordingJobService{}
	svc := NewKeywordResearchService(log, repo, stubKeywordRepo{}, &stubProjectService{project: project}, jobs)

	research, err := svc.Retry(context.Background(), userID, repo.research.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if research.Status != types.ResearchStatusPending {
		t.Fatalf("status: want=%v got=%v", types.ResearchStatusPending, research.Status)
	}
	if entries := repo.research.LogEntries(); len(entries) != 0 {
		t.Fatalf("progress log must be cleared, got %d entries", len(entries))
	}
	if repo.research.ErrorMessage != "" {
		t.Fatalf("error message must be cleared, got %q", repo.research.ErrorMessage)
	}
	if len(jobs.enqueued) != 1 || jobs.enqueued[0] != types.JobTypeKeywordResearch {
		t.Fatalf("retry must re-enqueue the pipeline, got %v", jobs.enqueued)
	}
}

func TestRetryRejectsInProgressResearch(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	userID := uuid.New()
	project := &types.Project{ID: uuid.New(), UserID: userID}
	repo := &statefulResearchRepo{research: &types.KeywordResearch{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    types.ResearchStatusProcessing,
	}}
	jobs := &recordingJobService{}
	svc := NewKeywordResearchService(log, repo, stubKeywordRepo{}, &stubProjectService{project: project}, jobs)

	if _, err := svc.Retry(context.Background(), userID, repo.research.ID); err == nil {
		t.Fatalf("retry of an in-progress run must fail")
	}
	if repo.research.Status != types.ResearchStatusProcessing {
		t.Fatalf("status must be untouched, got %v", repo.research.Status)
	}
	if len(jobs.enqueued) != 0 {
		t.Fatalf("no job should be enqueued, got %v", jobs.enqueued)
	}
}
