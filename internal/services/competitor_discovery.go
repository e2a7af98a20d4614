package services

import (
	"context"
	"fmt"
	"strings"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
)

// CompetitorDiscoveryService finds competing sites via grounded search and
// summarizes what they rank for.
type CompetitorDiscoveryService interface {
	Discover(ctx context.Context, site *types.SiteContent) ([]types.CompetitorSite, float64, error)
}

type competitorDiscoveryService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewCompetitorDiscoveryService(baseLog *logger.Logger, ai openai.Client) CompetitorDiscoveryService {
	return &competitorDiscoveryService{
		log: baseLog.With("service", "CompetitorDiscoveryService"),
		ai:  ai,
	}
}

const discoverySystemPrompt = `You are an SEO competitive analyst. Search the web for sites competing with the described business. Respond with JSON: {"competitors": [{"url": "..", "title": "..", "summary": "what they rank for"}]}. Up to 8 competitors.`

func (s *competitorDiscoveryService) Discover(ctx context.Context, site *types.SiteContent) ([]types.CompetitorSite, float64, error) {
	user := fmt.Sprintf("Site: %s\nTitle: %s\nDescription: %s\nHeadings: %s",
		site.URL, site.Title, site.Description, strings.Join(site.Headings, "; "))

	obj, cost, err := s.ai.GenerateGroundedJSON(ctx, discoverySystemPrompt, user)
	if err != nil {
		return nil, cost, err
	}

	var competitors []types.CompetitorSite
	if arr, ok := obj["competitors"].([]any); ok {
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			comp := types.CompetitorSite{
				URL:     toString(m["url"]),
				Title:   toString(m["title"]),
				Summary: toString(m["summary"]),
			}
			if comp.URL != "" {
				competitors = append(competitors, comp)
			}
		}
	}
	return competitors, cost, nil
}
