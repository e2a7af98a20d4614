package services

import (
	"context"
	"encoding/json"
	"fmt"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// OutlineService turns SERP analysis into a sectioned article outline.
// Voice is accepted for symmetry with the writer but the article pipeline
// always passes it empty: outlines are structural, voice is applied when the
// draft is written.
type OutlineService interface {
	Generate(ctx context.Context, serp *types.SerpData, targetWordCount int, voice string) (*types.Outline, float64, error)
}

type outlineService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewOutlineService(baseLog *logger.Logger, ai openai.Client) OutlineService {
	return &outlineService{
		log: baseLog.With("service", "OutlineService"),
		ai:  ai,
	}
}

const outlineSystemPrompt = `You are an SEO content strategist. Given SERP analysis, produce an article outline as JSON: {"title": "..", "meta_description": "..", "sections": [{"heading": "..", "target_words": 300, "notes": ".."}]}. Section word targets should sum to the requested total.`

func (s *outlineService) Generate(ctx context.Context, serp *types.SerpData, targetWordCount int, voice string) (*types.Outline, float64, error) {
	serpJSON, err := json.Marshal(serp)
	if err != nil {
		return nil, 0, err
	}
	user := fmt.Sprintf("Target word count: %d\nSERP analysis:\n%s", targetWordCount, serpJSON)
	if voice != "" {
		user += "\nVoice profile:\n" + voice
	}

	obj, cost, err := s.ai.GenerateJSON(ctx, outlineSystemPrompt, user)
	if err != nil {
		return nil, cost, err
	}

	outline := &types.Outline{
		Title:           toString(obj["title"]),
		MetaDescription: toString(obj["meta_description"]),
	}
	if arr, ok := obj["sections"].([]any); ok {
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			section := types.OutlineSection{
				Heading: toString(m["heading"]),
				Notes:   toString(m["notes"]),
			}
			if n, ok := m["target_words"].(float64); ok && n > 0 {
				section.TargetWords = int(n)
			}
			if section.Heading != "" {
				outline.Sections = append(outline.Sections, section)
			}
		}
	}
	if outline.Title == "" || len(outline.Sections) == 0 {
		s.log.Warn("outline generation returned no usable data")
		return nil, cost, nil
	}
	return outline, cost, nil
}
