package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rankforge/rankforge-backend/internal/middleware"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/services"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

type SSEHandler struct {
	log             *logger.Logger
	hub             *sse.SSEHub
	articleService  services.ArticleService
	researchService services.KeywordResearchService

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.SSEClient // key: user id, one stream per user
}

func NewSSEHandler(baseLog *logger.Logger, hub *sse.SSEHub, articleService services.ArticleService, researchService services.KeywordResearchService) *SSEHandler {
	return &SSEHandler{
		log:             baseLog.With("handler", "SSEHandler"),
		hub:             hub,
		articleService:  articleService,
		researchService: researchService,
		clients:         make(map[uuid.UUID]*sse.SSEClient),
	}
}

func (h *SSEHandler) SSEStream(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	h.mu.Lock()
	if existing, ok := h.clients[userID]; ok {
		h.hub.CloseClient(existing)
		delete(h.clients, userID)
	}
	client := h.hub.NewSSEClient(userID)
	h.clients[userID] = client
	h.mu.Unlock()

	h.log.Info("SSE stream open", "userID", userID, "clientID", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	delete(h.clients, userID)
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

func (h *SSEHandler) SSESubscribe(c *gin.Context) {
	userID := middleware.UserID(c)
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}
	if !h.authorizeChannel(c, userID, req.Channel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	h.mu.RLock()
	client, exists := h.clients[userID]
	h.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection"})
		return
	}

	h.hub.AddChannel(client, req.Channel)
	c.JSON(http.StatusOK, gin.H{"message": "subscribed", "channel": req.Channel})
}

func (h *SSEHandler) SSEUnsubscribe(c *gin.Context) {
	userID := middleware.UserID(c)
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return
	}

	h.mu.RLock()
	client, exists := h.clients[userID]
	h.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection"})
		return
	}

	h.hub.RemoveChannel(client, req.Channel)
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed", "channel": req.Channel})
}

// authorizeChannel enforces that only the owning user may subscribe to an
// entity's progress channel.
func (h *SSEHandler) authorizeChannel(c *gin.Context, userID uuid.UUID, channel string) bool {
	kind, rawID, ok := strings.Cut(channel, ":")
	if !ok {
		return false
	}
	entityID, err := uuid.Parse(rawID)
	if err != nil {
		return false
	}
	switch kind {
	case "article":
		_, err := h.articleService.Get(c.Request.Context(), userID, entityID)
		return err == nil
	case "keyword_research":
		_, err := h.researchService.Get(c.Request.Context(), userID, entityID)
		return err == nil
	default:
		return false
	}
}
