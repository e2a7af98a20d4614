package keyword_research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/jobs"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
)

const (
	seedAnnounceLimit   = 10
	expandAnnounceLimit = 5
)

// run carries the mutable state of one research execution so stages can
// accumulate cost without threading it through every call.
type run struct {
	p        *Pipeline
	jc       *jobs.Context
	ctx      context.Context
	dbc      dbctx.Context
	research *types.KeywordResearch
	project  *types.Project
	cost     float64
}

// Run drives one KeywordResearch row from pending to a terminal state.
// Unlike article generation, any stage error is recorded on the entity and
// then returned to the worker, which keeps the job eligible for retry.
func (p *Pipeline) Run(jc *jobs.Context) error {
	researchID, ok := jc.PayloadUUID("keywordResearchID")
	if !ok {
		return fmt.Errorf("payload missing keywordResearchID")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	research, err := p.researchRepo.GetByID(dbc, researchID)
	if err != nil {
		return err
	}
	if research == nil {
		return fmt.Errorf("keyword research %s not found", researchID)
	}

	now := time.Now()
	claimed, err := p.researchRepo.UpdateFieldsWhereStatus(dbc, research.ID,
		[]string{types.ResearchStatusPending},
		map[string]interface{}{
			"status":     types.ResearchStatusProcessing,
			"started_at": now,
		})
	if err != nil {
		return err
	}
	if !claimed {
		p.log.Warn("Keyword research is not pending; skipping run", "researchID", research.ID, "status", research.Status)
		return nil
	}
	research.Status = types.ResearchStatusProcessing
	research.StartedAt = &now

	project, err := p.projectRepo.GetByID(dbc, research.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		err := fmt.Errorf("project %s not found", research.ProjectID)
		p.markFailed(jc.Ctx, research, err, 0)
		return err
	}

	r := &run{p: p, jc: jc, ctx: jc.Ctx, dbc: dbc, research: research, project: project}
	saved, err := r.execute()
	if err != nil {
		p.markFailed(jc.Ctx, research, err, r.cost)
		return err
	}

	jc.Done(map[string]any{
		"keywordResearchID": research.ID,
		"keywords_saved":    saved,
		"cost":              r.cost,
	})
	return nil
}

func (r *run) execute() (int, error) {
	r.announce(fmt.Sprintf("Starting keyword research for %s", r.project.Domain), 0)

	// Scrape own domain. No cost is tracked at this layer; errors bubble.
	r.announce(fmt.Sprintf("Analyzing %s", r.project.Domain), 0)
	site, err := r.stageScrape()
	if err != nil {
		return 0, err
	}

	competitors, err := r.stageCompetitors(site)
	if err != nil {
		return 0, err
	}
	r.announce(fmt.Sprintf("Discovered %d competitor sites", len(competitors)), 0)

	seeds, err := r.stageSeeds(site, competitors)
	if err != nil {
		return 0, err
	}
	for i, seed := range seeds {
		if i >= seedAnnounceLimit {
			r.announce(fmt.Sprintf("→ ... and %d more", len(seeds)-seedAnnounceLimit), 1)
			break
		}
		r.announce(fmt.Sprintf("→ %s", seed), 1)
	}
	r.announce(fmt.Sprintf("Generated %d seed keywords", len(seeds)), 0)
	r.persistSeeds(seeds)

	for i, seed := range seeds {
		if i >= expandAnnounceLimit {
			r.announce(fmt.Sprintf("... expanding %d more seeds", len(seeds)-expandAnnounceLimit), 1)
			break
		}
		r.announce(fmt.Sprintf("Expanding: %s", seed), 1)
	}
	discovered, err := r.stageExpansion(seeds)
	if err != nil {
		return 0, err
	}
	r.announce(fmt.Sprintf("Found %d keywords after expansion", len(discovered)), 0)

	// Sitemap mining only runs against registered competitors. With none
	// registered the stage is skipped without an announce.
	if urls := r.project.CompetitorURLs(); len(urls) > 0 {
		r.announce(fmt.Sprintf("Mining %d competitor sitemaps", len(urls)), 0)
		mined, err := r.stageSitemaps(urls)
		if err != nil {
			return 0, err
		}
		discovered = mergeDiscovered(discovered, mined)
		r.announce(fmt.Sprintf("Sitemap mining complete: %d keywords found", len(mined)), 0)
	}

	r.announce(fmt.Sprintf("Calculating keyword metrics via %s", r.p.metrics.SourceName()), 0)
	scored, err := r.stageMetrics(discovered)
	if err != nil {
		return 0, err
	}

	keywords := r.rankAndCap(scored)
	if err := r.p.keywordRepo.ReplaceForResearch(r.dbc, r.research.ID, keywords); err != nil {
		return 0, err
	}

	now := time.Now()
	if err := r.p.researchRepo.UpdateFields(r.dbc, r.research.ID, map[string]interface{}{
		"status":               types.ResearchStatusCompleted,
		"total_keywords_found": len(discovered),
		"research_cost":        r.cost,
		"completed_at":         now,
	}); err != nil {
		return 0, err
	}
	r.research.Status = types.ResearchStatusCompleted
	r.research.TotalKeywordsFound = len(discovered)
	r.research.ResearchCost = r.cost
	r.research.CompletedAt = &now

	r.announce(fmt.Sprintf("Research complete: %d keyword opportunities identified", len(keywords)), 0)
	return len(keywords), nil
}

func (r *run) stageScrape() (*types.SiteContent, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	return r.p.scraper.ScrapeDomain(ctx, r.project.Domain)
}

func (r *run) stageCompetitors(site *types.SiteContent) ([]types.CompetitorSite, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	competitors, cost, err := r.p.competitors.Discover(ctx, site)
	r.cost += cost
	return competitors, err
}

func (r *run) stageSeeds(site *types.SiteContent, competitors []types.CompetitorSite) ([]string, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	seeds, cost, err := r.p.seeds.Generate(ctx, site, competitors)
	r.cost += cost
	return seeds, err
}

func (r *run) stageExpansion(seeds []string) ([]types.DiscoveredKeyword, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	discovered, cost, err := r.p.expansion.Expand(ctx, seeds)
	r.cost += cost
	return discovered, err
}

func (r *run) stageSitemaps(urls []string) ([]types.DiscoveredKeyword, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	return r.p.sitemaps.Mine(ctx, urls)
}

func (r *run) stageMetrics(discovered []types.DiscoveredKeyword) ([]types.ScoredKeyword, error) {
	r.jc.Heartbeat()
	ctx, cancel := r.p.stageCtx(r.ctx)
	defer cancel()
	return r.p.metrics.Calculate(ctx, discovered)
}

func (r *run) persistSeeds(seeds []string) {
	raw, err := json.Marshal(seeds)
	if err != nil {
		return
	}
	if err := r.p.researchRepo.UpdateFields(r.dbc, r.research.ID, map[string]interface{}{
		"seed_keywords": datatypes.JSON(raw),
	}); err != nil {
		r.p.log.Warn("Failed to persist seed keywords", "researchID", r.research.ID, "error", err)
		return
	}
	r.research.SeedKeywords = datatypes.JSON(raw)
}

func (r *run) rankAndCap(scored []types.ScoredKeyword) []*types.Keyword {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Opportunity > scored[j].Opportunity
	})
	limit := r.p.cfg.MaxSavedKeywords
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]*types.Keyword, 0, len(scored))
	for _, s := range scored {
		var sources datatypes.JSON
		if raw, err := json.Marshal(s.Sources); err == nil {
			sources = datatypes.JSON(raw)
		}
		out = append(out, &types.Keyword{
			KeywordResearchID: r.research.ID,
			ProjectID:         r.project.ID,
			Term:              s.Term,
			Volume:            s.Volume,
			Difficulty:        s.Difficulty,
			Opportunity:       s.Opportunity,
			CPC:               s.CPC,
			Intent:            s.Intent,
			Sources:           sources,
		})
	}
	return out
}

func (r *run) announce(message string, indent int) {
	r.p.progress.ResearchProgress(r.ctx, r.research, message, indent)
}

func (p *Pipeline) markFailed(ctx context.Context, research *types.KeywordResearch, cause error, totalCost float64) {
	now := time.Now()
	if err := p.researchRepo.UpdateFields(dbctx.Context{Ctx: ctx}, research.ID, map[string]interface{}{
		"status":        types.ResearchStatusFailed,
		"error_message": cause.Error(),
		"research_cost": totalCost,
		"completed_at":  now,
	}); err != nil {
		p.log.Error("Failed to mark research failed", "researchID", research.ID, "error", err)
	}
	research.Status = types.ResearchStatusFailed
	research.ErrorMessage = cause.Error()
	research.ResearchCost = totalCost
	research.CompletedAt = &now
	p.progress.ResearchProgress(ctx, research, fmt.Sprintf("Research failed: %s", cause.Error()), 0)
}

func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.StageTimeout)
}

func mergeDiscovered(base, extra []types.DiscoveredKeyword) []types.DiscoveredKeyword {
	index := make(map[string]int, len(base))
	out := make([]types.DiscoveredKeyword, len(base))
	copy(out, base)
	for i, kw := range out {
		index[strings.ToLower(kw.Term)] = i
	}
	for _, kw := range extra {
		key := strings.ToLower(kw.Term)
		if i, ok := index[key]; ok {
			out[i].Sources = mergeSources(out[i].Sources, kw.Sources)
			continue
		}
		index[key] = len(out)
		out = append(out, kw)
	}
	return out
}

func mergeSources(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
