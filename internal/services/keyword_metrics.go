package services

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/googleads"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

// KeywordMetricsService computes volume/difficulty/CPC/intent/opportunity for
// discovered keywords. With a configured Google Ads client it uses live
// Keyword Planner data; otherwise it estimates heuristically. Which source is
// active is user-visible via the progress log.
type KeywordMetricsService interface {
	UsesLiveData() bool
	SourceName() string
	Calculate(ctx context.Context, discovered []types.DiscoveredKeyword) ([]types.ScoredKeyword, error)
}

type keywordMetricsService struct {
	log *logger.Logger
	ads *googleads.Client
}

func NewKeywordMetricsService(baseLog *logger.Logger, ads *googleads.Client) KeywordMetricsService {
	return &keywordMetricsService{
		log: baseLog.With("service", "KeywordMetricsService"),
		ads: ads,
	}
}

func (s *keywordMetricsService) UsesLiveData() bool { return s.ads != nil }

func (s *keywordMetricsService) SourceName() string {
	if s.UsesLiveData() {
		return "Google Ads Keyword Planner"
	}
	return "heuristic estimation"
}

func (s *keywordMetricsService) Calculate(ctx context.Context, discovered []types.DiscoveredKeyword) ([]types.ScoredKeyword, error) {
	if s.UsesLiveData() {
		return s.calculateLive(ctx, discovered)
	}
	out := make([]types.ScoredKeyword, 0, len(discovered))
	for _, kw := range discovered {
		out = append(out, estimate(kw))
	}
	return out, nil
}

func (s *keywordMetricsService) calculateLive(ctx context.Context, discovered []types.DiscoveredKeyword) ([]types.ScoredKeyword, error) {
	terms := make([]string, 0, len(discovered))
	byTerm := make(map[string]types.DiscoveredKeyword, len(discovered))
	for _, kw := range discovered {
		terms = append(terms, kw.Term)
		byTerm[kw.Term] = kw
	}
	metrics, err := s.ads.KeywordMetrics(ctx, terms)
	if err != nil {
		return nil, err
	}

	out := make([]types.ScoredKeyword, 0, len(discovered))
	reported := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		kw, ok := byTerm[m.Term]
		if !ok {
			continue
		}
		reported[m.Term] = true
		scored := types.ScoredKeyword{
			DiscoveredKeyword: kw,
			Volume:            m.AvgMonthlySearches,
			Difficulty:        round2(m.Competition),
			CPC:               round2(m.CPC()),
			Intent:            classifyIntent(kw.Term),
		}
		scored.Opportunity = opportunityScore(scored.Volume, scored.Difficulty)
		out = append(out, scored)
	}
	// Terms the API did not report still get estimated so nothing discovered
	// silently disappears before filtering.
	for _, kw := range discovered {
		if !reported[kw.Term] {
			out = append(out, estimate(kw))
		}
	}
	return out, nil
}

func estimate(kw types.DiscoveredKeyword) types.ScoredKeyword {
	words := strings.Fields(kw.Term)
	if len(words) == 0 {
		words = []string{kw.Term}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(kw.Term))
	seed := float64(h.Sum32()%1000) / 1000

	// Head terms get more volume and more difficulty; long tails less of both.
	base := 12000.0 / math.Pow(float64(len(words)), 1.8)
	volume := int(base * (0.5 + seed))
	difficulty := round2(math.Min(95, 25+60/float64(len(words))+seed*20))
	cpc := round2(0.2 + seed*3)
	if intent := classifyIntent(kw.Term); intent == types.IntentTransactional || intent == types.IntentCommercial {
		cpc = round2(cpc * 1.8)
	}

	scored := types.ScoredKeyword{
		DiscoveredKeyword: kw,
		Volume:            volume,
		Difficulty:        difficulty,
		CPC:               cpc,
		Intent:            classifyIntent(kw.Term),
	}
	scored.Opportunity = opportunityScore(volume, difficulty)
	return scored
}

func opportunityScore(volume int, difficulty float64) float64 {
	return round2(math.Sqrt(float64(volume)) * (100 - difficulty) / 100)
}

func classifyIntent(term string) string {
	t := " " + strings.ToLower(term) + " "
	switch {
	case containsAny(t, " buy ", " order ", " coupon ", " discount ", " deal ", " cheap ", " price "):
		return types.IntentTransactional
	case containsAny(t, " best ", " top ", " review ", " reviews ", " vs ", " compare ", " comparison ", " alternative "):
		return types.IntentCommercial
	case containsAny(t, " login ", " signin ", " sign in ", " www ", " official "):
		return types.IntentNavigational
	default:
		return types.IntentInformational
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
