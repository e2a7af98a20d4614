package article_generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/jobs"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
)

// Run drives one article from pending to a terminal state. Stage failures
// and unexpected errors both end in status=failed with the accumulated cost
// preserved; neither is returned to the worker, so a run is never retried
// automatically. A missing article is a silent no-op.
func (p *Pipeline) Run(jc *jobs.Context) error {
	articleID, ok := jc.PayloadUUID("articleID")
	if !ok {
		return fmt.Errorf("payload missing articleID")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	article, err := p.articleRepo.GetByID(dbc, articleID)
	if err != nil {
		return err
	}
	if article == nil {
		p.log.Warn("Article not found; skipping run", "articleID", articleID)
		return nil
	}

	now := time.Now()
	claimed, err := p.articleRepo.UpdateFieldsWhereStatus(dbc, article.ID,
		[]string{types.ArticleStatusPending},
		map[string]interface{}{
			"status":     types.ArticleStatusGenerating,
			"started_at": now,
		})
	if err != nil {
		return err
	}
	if !claimed {
		p.log.Warn("Article is not pending; skipping run", "articleID", article.ID, "status", article.Status)
		return nil
	}
	article.Status = types.ArticleStatusGenerating
	article.StartedAt = &now

	totalCost := 0.0
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Article pipeline panic", "articleID", article.ID, "panic", r)
			p.markFailed(jc.Ctx, article, fmt.Sprintf("panic: %v", r), totalCost)
		}
	}()

	keyword, project, voice, err := p.loadInputs(dbc, article)
	if err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}

	p.progress.ArticleProgress(jc.Ctx, article, fmt.Sprintf("Starting article generation for %q", keyword.Term))

	// SERP research.
	jc.Heartbeat()
	serp, cost, err := p.researchSerp(jc.Ctx, keyword.Term)
	totalCost += cost
	if err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	if serp == nil {
		p.markFailed(jc.Ctx, article, "SERP research failed", totalCost)
		return nil
	}
	if err := p.persistJSON(dbc, article, "serp_data", serp, func(raw datatypes.JSON) { article.SerpData = raw }); err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	p.progress.ArticleProgress(jc.Ctx, article, fmt.Sprintf("SERP research complete: %d common topics identified", len(serp.CommonTopics)))

	// Outline. Voice is deliberately withheld here; it applies at write time.
	jc.Heartbeat()
	outline, cost, err := p.generateOutline(jc.Ctx, serp, project.TargetWordCount)
	totalCost += cost
	if err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	if outline == nil {
		p.markFailed(jc.Ctx, article, "Outline generation failed", totalCost)
		return nil
	}
	if err := p.persistJSON(dbc, article, "outline", outline, func(raw datatypes.JSON) { article.Outline = raw }); err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	p.progress.ArticleProgress(jc.Ctx, article, fmt.Sprintf("Outline ready: targeting %d words", outline.TargetWordCount()))

	// Draft.
	jc.Heartbeat()
	draft, cost, err := p.writeDraft(jc.Ctx, outline, serp, voice)
	totalCost += cost
	if err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	if draft == "" {
		p.markFailed(jc.Ctx, article, "Article writing failed", totalCost)
		return nil
	}
	if err := p.articleRepo.UpdateFields(dbc, article.ID, map[string]interface{}{"content": draft}); err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	article.Content = draft
	p.progress.ArticleProgress(jc.Ctx, article, fmt.Sprintf("Draft complete: %d words", wordCount(draft)))

	// Improvement passes.
	jc.Heartbeat()
	improved, cost, err := p.improveContent(jc.Ctx, draft, serp)
	totalCost += cost
	if err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	if improved == "" {
		p.markFailed(jc.Ctx, article, "Article improvement failed", totalCost)
		return nil
	}
	if err := p.articleRepo.UpdateFields(dbc, article.ID, map[string]interface{}{"content": improved}); err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	article.Content = improved

	// Finalize.
	words := wordCount(improved)
	done := time.Now()
	updates := map[string]interface{}{
		"status":           types.ArticleStatusCompleted,
		"title":            outline.Title,
		"meta_description": outline.MetaDescription,
		"word_count":       words,
		"generation_cost":  totalCost,
		"completed_at":     done,
	}
	if err := p.articleRepo.UpdateFields(dbc, article.ID, updates); err != nil {
		p.markFailed(jc.Ctx, article, err.Error(), totalCost)
		return nil
	}
	article.Status = types.ArticleStatusCompleted
	article.Title = outline.Title
	article.MetaDescription = outline.MetaDescription
	article.WordCount = words
	article.GenerationCost = totalCost
	article.CompletedAt = &done

	elapsed := int(done.Sub(now).Seconds())
	p.progress.ArticleProgress(jc.Ctx, article,
		fmt.Sprintf("Article complete: %d words, $%.2f, %ds", words, totalCost, elapsed))
	jc.Done(map[string]any{
		"articleID":  article.ID,
		"word_count": words,
		"cost":       totalCost,
	})
	return nil
}

func (p *Pipeline) loadInputs(dbc dbctx.Context, article *types.Article) (*types.Keyword, *types.Project, string, error) {
	keyword, err := p.keywordRepo.GetByID(dbc, article.KeywordID)
	if err != nil {
		return nil, nil, "", err
	}
	if keyword == nil {
		return nil, nil, "", fmt.Errorf("keyword %s not found", article.KeywordID)
	}
	project, err := p.projectRepo.GetByID(dbc, article.ProjectID)
	if err != nil {
		return nil, nil, "", err
	}
	if project == nil {
		return nil, nil, "", fmt.Errorf("project %s not found", article.ProjectID)
	}
	voice := ""
	if user, err := p.userRepo.GetByID(dbc, project.UserID); err != nil {
		return nil, nil, "", err
	} else if user != nil {
		voice = user.VoiceProfile
	}
	return keyword, project, voice, nil
}

func (p *Pipeline) persistJSON(dbc dbctx.Context, article *types.Article, column string, v any, assign func(datatypes.JSON)) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.articleRepo.UpdateFields(dbc, article.ID, map[string]interface{}{column: datatypes.JSON(raw)}); err != nil {
		return err
	}
	assign(datatypes.JSON(raw))
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, article *types.Article, msg string, totalCost float64) {
	now := time.Now()
	if err := p.articleRepo.UpdateFields(dbctx.Context{Ctx: ctx}, article.ID, map[string]interface{}{
		"status":          types.ArticleStatusFailed,
		"error_message":   msg,
		"generation_cost": totalCost,
		"completed_at":    now,
	}); err != nil {
		p.log.Error("Failed to mark article failed", "articleID", article.ID, "error", err)
	}
	article.Status = types.ArticleStatusFailed
	article.ErrorMessage = msg
	article.GenerationCost = totalCost
	article.CompletedAt = &now
	p.progress.ArticleProgress(ctx, article, msg)
}

func (p *Pipeline) researchSerp(ctx context.Context, term string) (*types.SerpData, float64, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()
	return p.serp.Research(ctx, term)
}

func (p *Pipeline) generateOutline(ctx context.Context, serp *types.SerpData, targetWords int) (*types.Outline, float64, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()
	return p.outline.Generate(ctx, serp, targetWords, "")
}

func (p *Pipeline) writeDraft(ctx context.Context, outline *types.Outline, serp *types.SerpData, voice string) (string, float64, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()
	return p.writer.Write(ctx, outline, serp, voice)
}

func (p *Pipeline) improveContent(ctx context.Context, content string, serp *types.SerpData) (string, float64, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()
	return p.improver.Improve(ctx, content, serp)
}

func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.StageTimeout)
}

func wordCount(content string) int {
	return len(strings.Fields(content))
}
