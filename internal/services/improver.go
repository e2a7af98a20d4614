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

// ImproverService runs the multi-pass quality refinement over a draft.
// An empty result with a nil error means the stage produced no usable data;
// cost covers every pass attempted.
type ImproverService interface {
	Improve(ctx context.Context, content string, serp *types.SerpData) (string, float64, error)
}

type improverService struct {
	log    *logger.Logger
	ai     openai.Client
	passes int
}

func NewImproverService(baseLog *logger.Logger, ai openai.Client) ImproverService {
	return &improverService{
		log:    baseLog.With("service", "ImproverService"),
		ai:     ai,
		passes: 3,
	}
}

var improvementPasses = []string{
	"Improve clarity and flow. Tighten wording, fix awkward transitions, keep the structure and headings.",
	"Improve depth and accuracy. Expand thin sections toward their intent, remove filler, keep the structure.",
	"Final polish for publication. Fix grammar, consistency, and formatting. Keep the structure.",
}

func (s *improverService) Improve(ctx context.Context, content string, serp *types.SerpData) (string, float64, error) {
	serpJSON, err := json.Marshal(serp)
	if err != nil {
		return "", 0, err
	}

	current := content
	total := 0.0
	for i := 0; i < s.passes; i++ {
		system := fmt.Sprintf("You are an SEO content editor. %s Output only the revised article.", improvementPasses[i])
		user := fmt.Sprintf("Article:\n%s\n\nSERP topics to keep covered:\n%s", current, serpJSON)
		revised, cost, err := s.ai.GenerateText(ctx, system, user)
		total += cost
		if err != nil {
			return "", total, err
		}
		revised = strings.TrimSpace(revised)
		if revised == "" {
			s.log.Warn("improvement pass returned empty content", "pass", i+1)
			return "", total, nil
		}
		current = revised
	}
	return current, total, nil
}
