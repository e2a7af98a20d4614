package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rankforge/rankforge-backend/internal/handlers"
	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler            *handlers.AuthHandler
	AuthMiddleware         *middleware.AuthMiddleware
	ProjectHandler         *handlers.ProjectHandler
	ArticleHandler         *handlers.ArticleHandler
	KeywordResearchHandler *handlers.KeywordResearchHandler
	JobsHandler            *handlers.JobsHandler
	SSEHandler             *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			envutil.Str("FRONTEND_ORIGIN", "http://localhost:3000"),
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// User
	protected.GET("/user", cfg.AuthHandler.GetMe)
	protected.PUT("/user/voice", cfg.AuthHandler.UpdateVoiceProfile)

	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.SSEStream)
	protected.POST("/sse/subscribe", cfg.SSEHandler.SSESubscribe)
	protected.POST("/sse/unsubscribe", cfg.SSEHandler.SSEUnsubscribe)

	// Projects
	protected.POST("/projects", cfg.ProjectHandler.Create)
	protected.GET("/projects", cfg.ProjectHandler.List)
	protected.GET("/projects/:id", cfg.ProjectHandler.Get)
	protected.POST("/projects/:id/competitors", cfg.ProjectHandler.AddCompetitor)
	protected.GET("/projects/:id/articles", cfg.ArticleHandler.ListByProject)
	protected.GET("/projects/:id/keyword-research", cfg.KeywordResearchHandler.ListByProject)

	// Articles
	protected.POST("/articles", cfg.ArticleHandler.Create)
	protected.GET("/articles/:id", cfg.ArticleHandler.Get)
	protected.POST("/articles/:id/retry", cfg.ArticleHandler.Retry)

	// Keyword research
	protected.POST("/keyword-research", cfg.KeywordResearchHandler.Start)
	protected.GET("/keyword-research/:id", cfg.KeywordResearchHandler.Get)
	protected.GET("/keyword-research/:id/keywords", cfg.KeywordResearchHandler.ListKeywords)
	protected.POST("/keyword-research/:id/retry", cfg.KeywordResearchHandler.Retry)

	// Jobs
	protected.GET("/jobs/latest", cfg.JobsHandler.Latest)
	protected.GET("/jobs/:id", cfg.JobsHandler.Get)

	return router
}
