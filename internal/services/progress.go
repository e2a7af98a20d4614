package services

import (
	"context"
	"time"

	redisclient "github.com/rankforge/rankforge-backend/internal/clients/redis"
	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

// ProgressBroadcaster pushes pipeline progress to subscribers. Research
// progress is also appended to the entity's durable progress log before any
// broadcast, so late subscribers can replay it. Broadcasting is best-effort
// and never fails the pipeline, which is why nothing here returns an error.
type ProgressBroadcaster interface {
	ArticleProgress(ctx context.Context, article *types.Article, message string)
	ResearchProgress(ctx context.Context, research *types.KeywordResearch, message string, indent int)
}

type progressBroadcaster struct {
	log          *logger.Logger
	hub          *sse.SSEHub
	bus          redisclient.SSEBus
	researchRepo repos.KeywordResearchRepo
}

func NewProgressBroadcaster(baseLog *logger.Logger, hub *sse.SSEHub, bus redisclient.SSEBus, researchRepo repos.KeywordResearchRepo) ProgressBroadcaster {
	return &progressBroadcaster{
		log:          baseLog.With("service", "ProgressBroadcaster"),
		hub:          hub,
		bus:          bus,
		researchRepo: researchRepo,
	}
}

func (b *progressBroadcaster) ArticleProgress(ctx context.Context, article *types.Article, message string) {
	if article == nil {
		return
	}
	b.emit(ctx, sse.SSEMessage{
		Channel: sse.ArticleChannel(article.ID),
		Event:   sse.SSEEventArticleProgress,
		Data: map[string]any{
			"articleID":       article.ID,
			"status":          article.Status,
			"message":         message,
			"title":           article.Title,
			"word_count":      article.WordCount,
			"generation_cost": article.GenerationCost,
			"error_message":   article.ErrorMessage,
			"started_at":      article.StartedAt,
			"completed_at":    article.CompletedAt,
		},
	})
}

func (b *progressBroadcaster) ResearchProgress(ctx context.Context, research *types.KeywordResearch, message string, indent int) {
	if research == nil {
		return
	}
	entry := types.ProgressEntry{
		Time:    time.Now().UTC(),
		Message: message,
		Indent:  indent,
	}

	// Persist first. A subscriber that connects after this point replays the
	// entry from the row; a broadcast-first ordering could lose it.
	research.ProgressLog = research.AppendLogEntry(entry)
	if err := b.researchRepo.UpdateFields(dbctx.Context{Ctx: ctx}, research.ID, map[string]interface{}{
		"progress_log": research.ProgressLog,
	}); err != nil {
		b.log.Warn("Failed to persist progress entry", "researchID", research.ID, "error", err)
	}

	b.emit(ctx, sse.SSEMessage{
		Channel: sse.KeywordResearchChannel(research.ID),
		Event:   sse.SSEEventResearchProgress,
		Data: map[string]any{
			"keywordResearchID":    research.ID,
			"status":               research.Status,
			"message":              message,
			"indent":               indent,
			"time":                 entry.Time,
			"total_keywords_found": research.TotalKeywordsFound,
			"research_cost":        research.ResearchCost,
			"progress_log":         research.ProgressLog,
			"error_message":        research.ErrorMessage,
			"started_at":           research.StartedAt,
			"completed_at":         research.CompletedAt,
		},
	})
}

func (b *progressBroadcaster) emit(ctx context.Context, msg sse.SSEMessage) {
	if b.hub != nil {
		b.hub.Broadcast(msg)
	}
	if b.bus != nil {
		if err := b.bus.Publish(ctx, msg); err != nil {
			b.log.Warn("Failed to publish SSE message", "channel", msg.Channel, "error", err)
		}
	}
}
