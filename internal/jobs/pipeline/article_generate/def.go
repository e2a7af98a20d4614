package article_generate

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

	articleRepo repos.ArticleRepo
	keywordRepo repos.KeywordRepo
	projectRepo repos.ProjectRepo
	userRepo    repos.UserRepo

	serp     services.SerpResearchService
	outline  services.OutlineService
	writer   services.WriterService
	improver services.ImproverService
	progress services.ProgressBroadcaster
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.PipelineConfig,
	articleRepo repos.ArticleRepo,
	keywordRepo repos.KeywordRepo,
	projectRepo repos.ProjectRepo,
	userRepo repos.UserRepo,
	serp services.SerpResearchService,
	outline services.OutlineService,
	writer services.WriterService,
	improver services.ImproverService,
	progress services.ProgressBroadcaster,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "article_generate"),
		cfg:         cfg,
		articleRepo: articleRepo,
		keywordRepo: keywordRepo,
		projectRepo: projectRepo,
		userRepo:    userRepo,
		serp:        serp,
		outline:     outline,
		writer:      writer,
		improver:    improver,
		progress:    progress,
	}
}

func (p *Pipeline) Type() string { return "article_generate" }
