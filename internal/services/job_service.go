package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	redisclient "github.com/rankforge/rankforge-backend/internal/clients/redis"
	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

// JobService enqueues pipeline runs and reads back their queue state.
type JobService interface {
	Enqueue(ctx context.Context, ownerUserID uuid.UUID, jobType, entityType string, entityID uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
	LatestForEntity(ctx context.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	log     *logger.Logger
	jobRepo repos.JobRunRepo
	hub     *sse.SSEHub
	bus     redisclient.SSEBus
}

func NewJobService(baseLog *logger.Logger, jobRepo repos.JobRunRepo, hub *sse.SSEHub, bus redisclient.SSEBus) JobService {
	return &jobService{
		log:     baseLog.With("service", "JobService"),
		jobRepo: jobRepo,
		hub:     hub,
		bus:     bus,
	}
}

func (s *jobService) Enqueue(ctx context.Context, ownerUserID uuid.UUID, jobType, entityType string, entityID uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner user id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job type")
	}

	var payloadJSON datatypes.JSON
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		payloadJSON = datatypes.JSON(raw)
	}

	job := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		Status:      types.JobStatusQueued,
		Payload:     payloadJSON,
	}
	if entityID != uuid.Nil {
		job.EntityID = &entityID
	}

	created, err := s.jobRepo.Create(dbctx.Context{Ctx: ctx}, job)
	if err != nil {
		return nil, err
	}
	s.log.Info("Enqueued job", "jobID", created.ID, "jobType", jobType, "entityID", entityID)

	if entityID != uuid.Nil {
		msg := sse.SSEMessage{
			Channel: entityChannel(entityType, entityID),
			Event:   sse.SSEEventJobCreated,
			Data: map[string]any{
				"jobID":    created.ID,
				"jobType":  jobType,
				"entityID": entityID,
			},
		}
		if s.hub != nil {
			s.hub.Broadcast(msg)
		}
		if s.bus != nil {
			if err := s.bus.Publish(ctx, msg); err != nil {
				s.log.Warn("Failed to publish JobCreated", "jobID", created.ID, "error", err)
			}
		}
	}
	return created, nil
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return s.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *jobService) LatestForEntity(ctx context.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID) (*types.JobRun, error) {
	return s.jobRepo.GetLatestByEntity(dbctx.Context{Ctx: ctx}, ownerUserID, entityType, entityID)
}

func entityChannel(entityType string, entityID uuid.UUID) string {
	switch entityType {
	case "keyword_research":
		return sse.KeywordResearchChannel(entityID)
	default:
		return sse.ArticleChannel(entityID)
	}
}
