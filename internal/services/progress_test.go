package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/sse"
)

type orderRecordingResearchRepo struct {
	events *[]string
}

func (f *orderRecordingResearchRepo) Create(dbc dbctx.Context, r *types.KeywordResearch) (*types.KeywordResearch, error) {
	return r, nil
}

func (f *orderRecordingResearchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KeywordResearch, error) {
	return nil, nil
}

func (f *orderRecordingResearchRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.KeywordResearch, error) {
	return nil, nil
}

func (f *orderRecordingResearchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	*f.events = append(*f.events, "persist")
	return nil
}

func (f *orderRecordingResearchRepo) UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	return true, nil
}

type orderRecordingBus struct {
	events *[]string
}

func (b *orderRecordingBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	*b.events = append(*b.events, "broadcast")
	return nil
}

func (b *orderRecordingBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	return nil
}

func (b *orderRecordingBus) Close() error { return nil }

type snapshotRecordingBus struct {
	messages []sse.SSEMessage
}

func (b *snapshotRecordingBus) Publish(ctx context.Context, msg sse.SSEMessage) error {
	b.messages = append(b.messages, msg)
	return nil
}

func (b *snapshotRecordingBus) StartForwarder(ctx context.Context, onMsg func(m sse.SSEMessage)) error {
	return nil
}

func (b *snapshotRecordingBus) Close() error { return nil }

func TestResearchProgressPersistsBeforeBroadcast(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	var events []string
	repo := &orderRecordingResearchRepo{events: &events}
	bus := &orderRecordingBus{events: &events}
	broadcaster := NewProgressBroadcaster(log, nil, bus, repo)

	research := &types.KeywordResearch{ID: uuid.New(), Status: types.ResearchStatusProcessing}
	broadcaster.ResearchProgress(context.Background(), research, "Analyzing example.com", 0)

	if len(events) != 2 || events[0] != "persist" || events[1] != "broadcast" {
		t.Fatalf("log entry must be durable before broadcast, got %v", events)
	}
	entries := research.LogEntries()
	if len(entries) != 1 {
		t.Fatalf("entry should be appended in memory, got %d", len(entries))
	}
	if entries[0].Message != "Analyzing example.com" || entries[0].Indent != 0 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestResearchProgressAppendsInOrder(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	var events []string
	repo := &orderRecordingResearchRepo{events: &events}
	broadcaster := NewProgressBroadcaster(log, nil, nil, repo)

	research := &types.KeywordResearch{ID: uuid.New(), Status: types.ResearchStatusProcessing}
	broadcaster.ResearchProgress(context.Background(), research, "first", 0)
	broadcaster.ResearchProgress(context.Background(), research, "second", 1)
	broadcaster.ResearchProgress(context.Background(), research, "third", 0)

	entries := research.LogEntries()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d: want=%q got=%q", i, want, entries[i].Message)
		}
	}
	if entries[1].Indent != 1 {
		t.Fatalf("indent should be preserved, got %d", entries[1].Indent)
	}
}

func TestResearchProgressCarriesEntitySnapshot(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	var events []string
	repo := &orderRecordingResearchRepo{events: &events}
	bus := &snapshotRecordingBus{}
	broadcaster := NewProgressBroadcaster(log, nil, bus, repo)

	started := time.Now().UTC()
	research := &types.KeywordResearch{
		ID:                 uuid.New(),
		Status:             types.ResearchStatusProcessing,
		TotalKeywordsFound: 42,
		ResearchCost:       1.25,
		StartedAt:          &started,
	}
	broadcaster.ResearchProgress(context.Background(), research, "Expanding: shoes", 1)

	if len(bus.messages) != 1 {
		t.Fatalf("want 1 published event, got %d", len(bus.messages))
	}
	data, ok := bus.messages[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("Data should be map[string]any, got %T", bus.messages[0].Data)
	}
	for _, key := range []string{
		"keywordResearchID", "status", "message", "indent", "time",
		"total_keywords_found", "research_cost", "progress_log",
		"error_message", "started_at", "completed_at",
	} {
		if _, ok := data[key]; !ok {
			t.Fatalf("snapshot missing field %q: %v", key, data)
		}
	}
	if data["total_keywords_found"] != 42 {
		t.Fatalf("total_keywords_found: want=42 got=%v", data["total_keywords_found"])
	}
	if data["research_cost"] != 1.25 {
		t.Fatalf("research_cost: want=1.25 got=%v", data["research_cost"])
	}
	if data["started_at"] != research.StartedAt {
		t.Fatalf("started_at: want=%v got=%v", research.StartedAt, data["started_at"])
	}
	rawLog, ok := data["progress_log"].(datatypes.JSON)
	if !ok || len(rawLog) == 0 {
		t.Fatalf("progress_log should carry the appended entry, got %v", data["progress_log"])
	}
}

func TestArticleProgressCarriesEntitySnapshot(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	bus := &snapshotRecordingBus{}
	broadcaster := NewProgressBroadcaster(log, nil, bus, nil)

	article := &types.Article{
		ID:             uuid.New(),
		Status:         types.ArticleStatusCompleted,
		WordCount:      1900,
		GenerationCost: 0.47,
	}
	broadcaster.ArticleProgress(context.Background(), article, "Article complete: 1900 words, $0.47, 12s")

	if len(bus.messages) != 1 {
		t.Fatalf("want 1 published event, got %d", len(bus.messages))
	}
	data, ok := bus.messages[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("Data should be map[string]any, got %T", bus.messages[0].Data)
	}
	for _, key := range []string{
		"articleID", "status", "message", "title",
		"word_count", "generation_cost", "error_message",
		"started_at", "completed_at",
	} {
		if _, ok := data[key]; !ok {
			t.Fatalf("snapshot missing field %q: %v", key, data)
		}
	}
	if data["word_count"] != 1900 {
		t.Fatalf("word_count: want=1900 got=%v", data["word_count"])
	}
	if data["generation_cost"] != 0.47 {
		t.Fatalf("generation_cost: want=0.47 got=%v", data["generation_cost"])
	}
}

func TestArticleProgressNeverPersists(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	var events []string
	repo := &orderRecordingResearchRepo{events: &events}
	broadcaster := NewProgressBroadcaster(log, nil, nil, repo)

	article := &types.Article{ID: uuid.New(), Status: types.ArticleStatusGenerating}
	broadcaster.ArticleProgress(context.Background(), article, "Writing draft")

	if len(events) != 0 {
		t.Fatalf("article progress keeps no durable log, got %v", events)
	}
}
