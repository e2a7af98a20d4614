package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// WriterService drafts the article from the outline. An empty draft with a
// nil error means the stage produced no usable data.
type WriterService interface {
	Write(ctx context.Context, outline *types.Outline, serp *types.SerpData, voice string) (string, float64, error)
}

type writerService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewWriterService(baseLog *logger.Logger, ai openai.Client) WriterService {
	return &writerService{
		log: baseLog.With("service", "WriterService"),
		ai:  ai,
	}
}

const writerSystemPrompt = `You are an expert SEO content writer. Write the full article in markdown following the outline exactly, hitting each section's word target. Cover the SERP topics naturally. Output only the article.`

func (s *writerService) Write(ctx context.Context, outline *types.Outline, serp *types.SerpData, voice string) (string, float64, error) {
	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return "", 0, err
	}
	serpJSON, err := json.Marshal(serp)
	if err != nil {
		return "", 0, err
	}
	user := fmt.Sprintf("Outline:\n%s\n\nSERP analysis:\n%s", outlineJSON, serpJSON)
	if strings.TrimSpace(voice) != "" {
		user += "\n\nWrite in this voice:\n" + voice
	}

	draft, cost, err := s.ai.GenerateText(ctx, writerSystemPrompt, user)
	if err != nil {
		return "", cost, err
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		s.log.Warn("writer returned an empty draft")
	}
	return draft, cost, nil
}
