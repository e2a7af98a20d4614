package services

import (
	"context"
	"encoding/json"
	"fmt"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// SeedKeywordService proposes the initial keyword set from the site's own
// content plus what competitors rank for.
type SeedKeywordService interface {
	Generate(ctx context.Context, site *types.SiteContent, competitors []types.CompetitorSite) ([]string, float64, error)
}

type seedKeywordService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewSeedKeywordService(baseLog *logger.Logger, ai openai.Client) SeedKeywordService {
	return &seedKeywordService{
		log: baseLog.With("service", "SeedKeywordService"),
		ai:  ai,
	}
}

const seedSystemPrompt = `You are an SEO keyword strategist. Given a site's content and its competitors, propose seed keywords the site can realistically rank for. Respond with JSON: {"seed_keywords": ["..", ".."]}. 15 to 30 seeds, each 1-4 words.`

func (s *seedKeywordService) Generate(ctx context.Context, site *types.SiteContent, competitors []types.CompetitorSite) ([]string, float64, error) {
	siteJSON, err := json.Marshal(site)
	if err != nil {
		return nil, 0, err
	}
	compJSON, err := json.Marshal(competitors)
	if err != nil {
		return nil, 0, err
	}
	user := fmt.Sprintf("Site content:\n%s\n\nCompetitors:\n%s", siteJSON, compJSON)

	obj, cost, err := s.ai.GenerateJSON(ctx, seedSystemPrompt, user)
	if err != nil {
		return nil, cost, err
	}
	seeds := toStringSlice(obj["seed_keywords"])
	if len(seeds) == 0 {
		return nil, cost, fmt.Errorf("no seed keywords generated")
	}
	return seeds, cost, nil
}
