package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// KeywordExpansionService grows the seed set into long-tail variations.
type KeywordExpansionService interface {
	Expand(ctx context.Context, seeds []string) ([]types.DiscoveredKeyword, float64, error)
}

type keywordExpansionService struct {
	log       *logger.Logger
	ai        openai.Client
	batchSize int
}

func NewKeywordExpansionService(baseLog *logger.Logger, ai openai.Client) KeywordExpansionService {
	return &keywordExpansionService{
		log:       baseLog.With("service", "KeywordExpansionService"),
		ai:        ai,
		batchSize: 10,
	}
}

const expansionSystemPrompt = `You are an SEO keyword researcher. For each seed keyword, produce long-tail variations, question forms, and comparison forms searchers actually use. Respond with JSON: {"keywords": ["..", ".."]}.`

func (s *keywordExpansionService) Expand(ctx context.Context, seeds []string) ([]types.DiscoveredKeyword, float64, error) {
	total := 0.0
	seen := make(map[string]bool, len(seeds)*8)
	var out []types.DiscoveredKeyword

	for start := 0; start < len(seeds); start += s.batchSize {
		end := start + s.batchSize
		if end > len(seeds) {
			end = len(seeds)
		}
		user := fmt.Sprintf("Seed keywords:\n%s", strings.Join(seeds[start:end], "\n"))
		obj, cost, err := s.ai.GenerateJSON(ctx, expansionSystemPrompt, user)
		total += cost
		if err != nil {
			return nil, total, err
		}
		for _, term := range toStringSlice(obj["keywords"]) {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, types.DiscoveredKeyword{Term: term, Sources: []string{"expansion"}})
		}
	}
	return out, total, nil
}
