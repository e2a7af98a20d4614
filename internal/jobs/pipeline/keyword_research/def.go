package keyword_research

import (
	"gorm.io/gorm"

	"github.com/rankforge/rankforge-backend/internal/platform/config"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
	"github.com/rankforge/rankforge-backend/internal/services"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger
	cfg config.PipelineConfig

	researchRepo repos.KeywordResearchRepo
	keywordRepo  repos.KeywordRepo
	projectRepo  repos.ProjectRepo

	scraper     services.SiteScraperService
	competitors services.CompetitorDiscoveryService
	seeds       services.SeedKeywordService
	expansion   services.KeywordExpansionService
	sitemaps    services.SitemapMinerService
	metrics     services.KeywordMetricsService
	progress    services.ProgressBroadcaster
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.PipelineConfig,
	researchRepo repos.KeywordResearchRepo,
	keywordRepo repos.KeywordRepo,
	projectRepo repos.ProjectRepo,
	scraper services.SiteScraperService,
	competitors services.CompetitorDiscoveryService,
	seeds services.SeedKeywordService,
	expansion services.KeywordExpansionService,
	sitemaps services.SitemapMinerService,
	metrics services.KeywordMetricsService,
	progress services.ProgressBroadcaster,
) *Pipeline {
	return &Pipeline{
		db:           db,
		log:          baseLog.With("job", "keyword_research"),
		cfg:          cfg,
		researchRepo: researchRepo,
		keywordRepo:  keywordRepo,
		projectRepo:  projectRepo,
		scraper:      scraper,
		competitors:  competitors,
		seeds:        seeds,
		expansion:    expansion,
		sitemaps:     sitemaps,
		metrics:      metrics,
		progress:     progress,
	}
}

func (p *Pipeline) Type() string { return "keyword_research" }
