package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	redisclient "github.com/rankforge/rankforge-backend/internal/clients/redis"
	"github.com/rankforge/rankforge-backend/internal/db"
	"github.com/rankforge/rankforge-backend/internal/handlers"
	"github.com/rankforge/rankforge-backend/internal/jobs"
	"github.com/rankforge/rankforge-backend/internal/jobs/pipeline/article_generate"
	"github.com/rankforge/rankforge-backend/internal/jobs/pipeline/keyword_research"
	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/platform/config"
	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
	"github.com/rankforge/rankforge-backend/internal/platform/googleads"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/platform/openai"
	"github.com/rankforge/rankforge-backend/internal/repos"
	"github.com/rankforge/rankforge-backend/internal/server"
	"github.com/rankforge/rankforge-backend/internal/services"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := config.Load(envutil.Str("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal("Could not load config", "error", err)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	articleRepo := repos.NewArticleRepo(thePG, log)
	researchRepo := repos.NewKeywordResearchRepo(thePG, log)
	keywordRepo := repos.NewKeywordRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	var sseBus redisclient.SSEBus
	if bus, err := redisclient.NewSSEBus(log); err != nil {
		log.Warn("Redis SSE bus disabled", "error", err)
	} else {
		sseBus = bus
		if err := bus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
			log.Warn("Redis SSE forwarder failed to start", "error", err)
		}
	}

	// Clients
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAI client", "error", err)
	}
	adsClient, live := googleads.NewClientFromEnv(log)
	if live {
		log.Info("Keyword metrics will use Google Ads data")
	} else {
		log.Info("Keyword metrics will use heuristic estimation")
	}

	// Services
	log.Info("Setting up services from main...")
	progressBroadcaster := services.NewProgressBroadcaster(log, sseHub, sseBus, researchRepo)
	jobService := services.NewJobService(log, jobRunRepo, sseHub, sseBus)
	authService, err := services.NewAuthService(log, userRepo)
	if err != nil {
		log.Fatal("Could not init AuthService", "error", err)
	}
	projectService := services.NewProjectService(log, projectRepo)
	articleService := services.NewArticleService(log, articleRepo, keywordRepo, projectService, jobService)
	researchService := services.NewKeywordResearchService(log, researchRepo, keywordRepo, projectService, jobService)

	serpService := services.NewSerpResearchService(log, openaiClient)
	outlineService := services.NewOutlineService(log, openaiClient)
	writerService := services.NewWriterService(log, openaiClient)
	improverService := services.NewImproverService(log, openaiClient)
	scraperService := services.NewSiteScraperService(log)
	competitorService := services.NewCompetitorDiscoveryService(log, openaiClient)
	seedService := services.NewSeedKeywordService(log, openaiClient)
	expansionService := services.NewKeywordExpansionService(log, openaiClient)
	sitemapService := services.NewSitemapMinerService(log)
	metricsService := services.NewKeywordMetricsService(log, adsClient)

	// Pipelines
	log.Info("Registering pipelines from main...")
	registry := jobs.NewRegistry()
	if err := registry.Register(article_generate.New(
		thePG, log, cfg.Pipeline,
		articleRepo, keywordRepo, projectRepo, userRepo,
		serpService, outlineService, writerService, improverService,
		progressBroadcaster,
	)); err != nil {
		log.Fatal("Could not register article pipeline", "error", err)
	}
	if err := registry.Register(keyword_research.New(
		thePG, log, cfg.Pipeline,
		researchRepo, keywordRepo, projectRepo,
		scraperService, competitorService, seedService, expansionService, sitemapService, metricsService,
		progressBroadcaster,
	)); err != nil {
		log.Fatal("Could not register keyword research pipeline", "error", err)
	}

	worker := jobs.NewWorker(thePG, log, jobRunRepo, registry, cfg.Worker)
	worker.Start(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(projectService)
	articleHandler := handlers.NewArticleHandler(articleService)
	researchHandler := handlers.NewKeywordResearchHandler(researchService)
	jobsHandler := handlers.NewJobsHandler(jobService)
	sseHandler := handlers.NewSSEHandler(log, sseHub, articleService, researchService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:            authHandler,
		AuthMiddleware:         authMiddleware,
		ProjectHandler:         projectHandler,
		ArticleHandler:         articleHandler,
		KeywordResearchHandler: researchHandler,
		JobsHandler:            jobsHandler,
		SSEHandler:             sseHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
