package services

import (
	"context"
	"fmt"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// SerpResearchService analyzes the live search results for a keyword.
// A nil SerpData with a nil error means the stage produced no usable data;
// the returned cost is spent either way.
type SerpResearchService interface {
	Research(ctx context.Context, keyword string) (*types.SerpData, float64, error)
}

type serpResearchService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewSerpResearchService(baseLog *logger.Logger, ai openai.Client) SerpResearchService {
	return &serpResearchService{
		log: baseLog.With("service", "SerpResearchService"),
		ai:  ai,
	}
}

const serpSystemPrompt = `You are an SEO research assistant. Search the web for the given keyword and analyze the top-ranking pages. Respond with a JSON object: {"common_topics": [..], "questions": [..], "results": [{"url": "..", "title": "..", "summary": ".."}]}.`

func (s *serpResearchService) Research(ctx context.Context, keyword string) (*types.SerpData, float64, error) {
	obj, cost, err := s.ai.GenerateGroundedJSON(ctx, serpSystemPrompt, fmt.Sprintf("Keyword: %q", keyword))
	if err != nil {
		return nil, cost, err
	}

	data := &types.SerpData{
		CommonTopics: toStringSlice(obj["common_topics"]),
		Questions:    toStringSlice(obj["questions"]),
	}
	if arr, ok := obj["results"].([]any); ok {
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			res := types.SerpResult{
				URL:     toString(m["url"]),
				Title:   toString(m["title"]),
				Summary: toString(m["summary"]),
			}
			if res.URL != "" || res.Title != "" {
				data.Results = append(data.Results, res)
			}
		}
	}
	if len(data.CommonTopics) == 0 && len(data.Results) == 0 {
		s.log.Warn("SERP research returned no usable data", "keyword", keyword)
		return nil, cost, nil
	}
	return data, cost, nil
}
