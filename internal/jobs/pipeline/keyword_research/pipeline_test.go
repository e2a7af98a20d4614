package keyword_research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/jobs"
	"github.com/rankforge/rankforge-backend/internal/platform/config"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

type fakeResearchRepo struct {
	research *types.KeywordResearch
}

func (f *fakeResearchRepo) Create(dbc dbctx.Context, r *types.KeywordResearch) (*types.KeywordResearch, error) {
	f.research = r
	return r, nil
}

func (f *fakeResearchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KeywordResearch, error) {
	if f.research == nil || f.research.ID != id {
		return nil, nil
	}
	copy := *f.research
	return &copy, nil
}

func (f *fakeResearchRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.KeywordResearch, error) {
	return nil, nil
}

func (f *fakeResearchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	for k, v := range updates {
		switch k {
		case "status":
			f.research.Status = v.(string)
		case "error_message":
			f.research.ErrorMessage = v.(string)
		case "seed_keywords":
			f.research.SeedKeywords = v.(datatypes.JSON)
		case "progress_log":
			f.research.ProgressLog = v.(datatypes.JSON)
		case "total_keywords_found":
			f.research.TotalKeywordsFound = v.(int)
		case "research_cost":
			f.research.ResearchCost = v.(float64)
		}
	}
	return nil
}

func (f *fakeResearchRepo) UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	match := false
	for _, s := range fromStatuses {
		if f.research != nil && f.research.Status == s {
			match = true
		}
	}
	if !match {
		return false, nil
	}
	return true, f.UpdateFields(dbc, id, updates)
}

type fakeKeywordRepo struct {
	saved []*types.Keyword
}

func (f *fakeKeywordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Keyword, error) {
	return nil, nil
}

func (f *fakeKeywordRepo) ListByResearch(dbc dbctx.Context, researchID uuid.UUID) ([]*types.Keyword, error) {
	return f.saved, nil
}

func (f *fakeKeywordRepo) ReplaceForResearch(dbc dbctx.Context, researchID uuid.UUID, keywords []*types.Keyword) error {
	f.saved = keywords
	return nil
}

type fakeProjectRepo struct {
	project *types.Project
}

func (f *fakeProjectRepo) Create(dbc dbctx.Context, p *types.Project) (*types.Project, error) {
	return p, nil
}

func (f *fakeProjectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, nil
	}
	return f.project, nil
}

func (f *fakeProjectRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Project, error) {
	return nil, nil
}

func (f *fakeProjectRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

type fakeJobRunRepo struct {
	job        *types.JobRun
	heartbeats int
}

func (f *fakeJobRunRepo) Create(dbc dbctx.Context, j *types.JobRun) (*types.JobRun, error) {
	return j, nil
}

func (f *fakeJobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	return f.job, nil
}

func (f *fakeJobRunRepo) GetLatestByEntity(dbc dbctx.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID) (*types.JobRun, error) {
	return f.job, nil
}

func (f *fakeJobRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if f.job == nil {
		return nil
	}
	if _, ok := updates["heartbeat_at"]; ok {
		f.heartbeats++
	}
	if s, ok := updates["status"].(string); ok {
		f.job.Status = s
	}
	return nil
}

type progressLine struct {
	message string
	indent  int
}

type recordingBroadcaster struct {
	lines []progressLine
}

func (r *recordingBroadcaster) ArticleProgress(ctx context.Context, article *types.Article, message string) {
}

func (r *recordingBroadcaster) ResearchProgress(ctx context.Context, research *types.KeywordResearch, message string, indent int) {
	r.lines = append(r.lines, progressLine{message: message, indent: indent})
}

func (r *recordingBroadcaster) filter(prefix string) []progressLine {
	var out []progressLine
	for _, l := range r.lines {
		if strings.HasPrefix(l.message, prefix) {
			out = append(out, l)
		}
	}
	return out
}

type stubScraper struct {
	site *types.SiteContent
	err  error
}

func (s *stubScraper) ScrapeDomain(ctx context.Context, domain string) (*types.SiteContent, error) {
	return s.site, s.err
}

type stubCompetitors struct {
	sites []types.CompetitorSite
	cost  float64
	err   error
}

func (s *stubCompetitors) Discover(ctx context.Context, site *types.SiteContent) ([]types.CompetitorSite, float64, error) {
	return s.sites, s.cost, s.err
}

type stubSeeds struct {
	seeds []string
	cost  float64
	err   error
}

func (s *stubSeeds) Generate(ctx context.Context, site *types.SiteContent, competitors []types.CompetitorSite) ([]string, float64, error) {
	return s.seeds, s.cost, s.err
}

type stubExpansion struct {
	discovered []types.DiscoveredKeyword
	cost       float64
	err        error
}

func (s *stubExpansion) Expand(ctx context.Context, seeds []string) ([]types.DiscoveredKeyword, float64, error) {
	return s.discovered, s.cost, s.err
}

type stubSitemaps struct {
	discovered []types.DiscoveredKeyword
	err        error
	called     bool
}

func (s *stubSitemaps) Mine(ctx context.Context, competitorURLs []string) ([]types.DiscoveredKeyword, error) {
	s.called = true
	return s.discovered, s.err
}

type stubMetrics struct {
	source string
}

func (s *stubMetrics) UsesLiveData() bool { return false }

func (s *stubMetrics) SourceName() string {
	if s.source != "" {
		return s.source
	}
	return "heuristic estimation"
}

func (s *stubMetrics) Calculate(ctx context.Context, discovered []types.DiscoveredKeyword) ([]types.ScoredKeyword, error) {
	out := make([]types.ScoredKeyword, 0, len(discovered))
	for i, kw := range discovered {
		out = append(out, types.ScoredKeyword{
			DiscoveredKeyword: kw,
			Volume:            100 * (i + 1),
			Difficulty:        30,
			Opportunity:       float64(len(discovered) - i),
			Intent:            types.IntentInformational,
		})
	}
	return out, nil
}

type fixture struct {
	pipeline    *Pipeline
	research    *fakeResearchRepo
	keywords    *fakeKeywordRepo
	jobs        *fakeJobRunRepo
	broadcaster *recordingBroadcaster
	sitemaps    *stubSitemaps
	entityID    uuid.UUID
}

func newFixture(t *testing.T, project *types.Project, scraper *stubScraper, competitors *stubCompetitors, seeds *stubSeeds, expansion *stubExpansion, sitemaps *stubSitemaps) *fixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}

	research := &types.KeywordResearch{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    types.ResearchStatusPending,
	}
	researchRepo := &fakeResearchRepo{research: research}
	keywordRepo := &fakeKeywordRepo{}
	broadcaster := &recordingBroadcaster{}

	p := New(
		nil, log, config.PipelineConfig{MaxSavedKeywords: 100},
		researchRepo, keywordRepo, &fakeProjectRepo{project: project},
		scraper, competitors, seeds, expansion, sitemaps, &stubMetrics{},
		broadcaster,
	)
	return &fixture{
		pipeline:    p,
		research:    researchRepo,
		keywords:    keywordRepo,
		jobs:        &fakeJobRunRepo{},
		broadcaster: broadcaster,
		sitemaps:    sitemaps,
		entityID:    research.ID,
	}
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{"keywordResearchID": f.entityID})
	job := &types.JobRun{ID: uuid.New(), JobType: "keyword_research", Status: types.JobStatusRunning, Payload: datatypes.JSON(payload)}
	f.jobs.job = job
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	jc := jobs.NewContext(context.Background(), nil, job, f.jobs, log)
	return f.pipeline.Run(jc)
}

func seedList(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("seed keyword %d", i+1))
	}
	return out
}

func TestResearchCompletes(t *testing.T) {
	project := &types.Project{ID: uuid.New(), Domain: "example.com"}
	discovered := []types.DiscoveredKeyword{
		{Term: "running shoes", Sources: []string{"expansion"}},
		{Term: "trail shoes", Sources: []string{"expansion"}},
	}
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{URL: "https://example.com"}},
		&stubCompetitors{sites: []types.CompetitorSite{{URL: "https://rival.com"}}, cost: 0.10},
		&stubSeeds{seeds: seedList(3), cost: 0.20},
		&stubExpansion{discovered: discovered, cost: 0.50},
		&stubSitemaps{},
	)
	if err := f.run(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	got := f.research.research
	if got.Status != types.ResearchStatusCompleted {
		t.Fatalf("status: want=%v got=%v", types.ResearchStatusCompleted, got.Status)
	}
	if got.TotalKeywordsFound != 2 {
		t.Fatalf("total keywords: want=2 got=%d", got.TotalKeywordsFound)
	}
	wantCost := 0.10 + 0.20 + 0.50
	if got.ResearchCost != wantCost {
		t.Fatalf("cost: want=%v got=%v", wantCost, got.ResearchCost)
	}
	if len(f.keywords.saved) != 2 {
		t.Fatalf("saved keywords: want=2 got=%d", len(f.keywords.saved))
	}
	var seeds []string
	if err := json.Unmarshal(got.SeedKeywords, &seeds); err != nil || len(seeds) != 3 {
		t.Fatalf("seed keywords must be persisted, got %s", got.SeedKeywords)
	}
	last := f.broadcaster.lines[len(f.broadcaster.lines)-1]
	want := "Research complete: 2 keyword opportunities identified"
	if last.message != want {
		t.Fatalf("final announce: want=%q got=%q", want, last.message)
	}
	if f.jobs.job.Status != types.JobStatusSucceeded {
		t.Fatalf("job status: want=%v got=%v", types.JobStatusSucceeded, f.jobs.job.Status)
	}
	if f.jobs.heartbeats < 5 {
		t.Fatalf("every stage should refresh the heartbeat, got %d", f.jobs.heartbeats)
	}
}

func TestResearchMissingEntityPropagates(t *testing.T) {
	project := &types.Project{ID: uuid.New(), Domain: "example.com"}
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{}},
		&stubCompetitors{},
		&stubSeeds{seeds: seedList(1)},
		&stubExpansion{discovered: []types.DiscoveredKeyword{{Term: "x"}}},
		&stubSitemaps{},
	)
	f.entityID = uuid.New()

	if err := f.run(t); err == nil {
		t.Fatalf("a run against an absent research row must return an error")
	}
	if f.research.research.Status != types.ResearchStatusPending {
		t.Fatalf("stored research must be untouched, got status %v", f.research.research.Status)
	}
	if len(f.broadcaster.lines) != 0 {
		t.Fatalf("no progress should be announced, got %v", f.broadcaster.lines)
	}
}

func TestResearchSeedAnnouncements(t *testing.T) {
	project := &types.Project{ID: uuid.New(), Domain: "example.com"}
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{}},
		&stubCompetitors{},
		&stubSeeds{seeds: seedList(12)},
		&stubExpansion{discovered: []types.DiscoveredKeyword{{Term: "x"}}},
		&stubSitemaps{},
	)
	if err := f.run(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	arrows := f.broadcaster.filter("→ ")
	if len(arrows) != 11 {
		t.Fatalf("seed lines: want=11 got=%d", len(arrows))
	}
	for i := 0; i < 10; i++ {
		if arrows[i].message != "→ "+fmt.Sprintf("seed keyword %d", i+1) {
			t.Fatalf("seed line %d: got %q", i, arrows[i].message)
		}
		if arrows[i].indent != 1 {
			t.Fatalf("seed line %d should be indented", i)
		}
	}
	if arrows[10].message != "→ ... and 2 more" || arrows[10].indent != 1 {
		t.Fatalf("overflow line: got %q indent=%d", arrows[10].message, arrows[10].indent)
	}

	expanding := f.broadcaster.filter("Expanding: ")
	if len(expanding) != 5 {
		t.Fatalf("expanding pre-announcements: want=5 got=%d", len(expanding))
	}
	more := f.broadcaster.filter("... expanding ")
	if len(more) != 1 || more[0].message != "... expanding 7 more seeds" {
		t.Fatalf("expanding overflow line missing, got %v", more)
	}
}

func TestResearchStageErrorPropagates(t *testing.T) {
	project := &types.Project{ID: uuid.New(), Domain: "example.com"}
	boom := fmt.Errorf("grounded search unavailable")
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{}},
		&stubCompetitors{err: boom},
		&stubSeeds{}, &stubExpansion{}, &stubSitemaps{},
	)
	err := f.run(t)
	if err == nil {
		t.Fatalf("stage errors must propagate to the worker")
	}

	got := f.research.research
	if got.Status != types.ResearchStatusFailed {
		t.Fatalf("status: want=%v got=%v", types.ResearchStatusFailed, got.Status)
	}
	if got.ErrorMessage != boom.Error() {
		t.Fatalf("error message: want=%q got=%q", boom.Error(), got.ErrorMessage)
	}
}

func TestResearchSitemapStageSkippedWithoutCompetitors(t *testing.T) {
	project := &types.Project{ID: uuid.New(), Domain: "example.com"}
	sitemaps := &stubSitemaps{discovered: []types.DiscoveredKeyword{{Term: "mined"}}}
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{}},
		&stubCompetitors{},
		&stubSeeds{seeds: seedList(1)},
		&stubExpansion{discovered: []types.DiscoveredKeyword{{Term: "x"}}},
		sitemaps,
	)
	if err := f.run(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sitemaps.called {
		t.Fatalf("sitemap mining must not run without registered competitors")
	}
	if len(f.broadcaster.filter("Mining ")) != 0 {
		t.Fatalf("sitemap mining must not announce when skipped")
	}
}

func TestResearchSitemapStageRunsWithCompetitors(t *testing.T) {
	competitors, _ := json.Marshal([]string{"https://rival.com"})
	project := &types.Project{ID: uuid.New(), Domain: "example.com", Competitors: datatypes.JSON(competitors)}
	sitemaps := &stubSitemaps{discovered: []types.DiscoveredKeyword{{Term: "mined term", Sources: []string{"sitemap"}}}}
	f := newFixture(t, project,
		&stubScraper{site: &types.SiteContent{}},
		&stubCompetitors{},
		&stubSeeds{seeds: seedList(1)},
		&stubExpansion{discovered: []types.DiscoveredKeyword{{Term: "expanded term", Sources: []string{"expansion"}}}},
		sitemaps,
	)
	if err := f.run(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !sitemaps.called {
		t.Fatalf("sitemap mining should run with a registered competitor")
	}
	if f.research.research.TotalKeywordsFound != 2 {
		t.Fatalf("mined keywords should merge into the discovered set, got %d", f.research.research.TotalKeywordsFound)
	}
}

func TestMergeDiscoveredCombinesSources(t *testing.T) {
	base := []types.DiscoveredKeyword{{Term: "Running Shoes", Sources: []string{"expansion"}}}
	extra := []types.DiscoveredKeyword{
		{Term: "running shoes", Sources: []string{"sitemap"}},
		{Term: "trail shoes", Sources: []string{"sitemap"}},
	}
	out := mergeDiscovered(base, extra)
	if len(out) != 2 {
		t.Fatalf("merged length: want=2 got=%d", len(out))
	}
	if len(out[0].Sources) != 2 {
		t.Fatalf("duplicate term should merge sources, got %v", out[0].Sources)
	}
}
