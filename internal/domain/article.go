package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ArticleStatusPending    = "pending"
	ArticleStatusGenerating = "generating"
	ArticleStatusCompleted  = "completed"
	ArticleStatusFailed     = "failed"
)

type Article struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	KeywordID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"keyword_id"`
	Title           string         `gorm:"column:title" json:"title"`
	MetaDescription string         `gorm:"column:meta_description" json:"meta_description"`
	Status          string         `gorm:"column:status;not null;default:pending;index" json:"status"`
	SerpData        datatypes.JSON `gorm:"column:serp_data;type:jsonb" json:"serp_data,omitempty"`
	Outline         datatypes.JSON `gorm:"column:outline;type:jsonb" json:"outline,omitempty"`
	Content         string         `gorm:"column:content;type:text" json:"content,omitempty"`
	WordCount       int            `gorm:"column:word_count;not null;default:0" json:"word_count"`
	GenerationCost  float64        `gorm:"column:generation_cost;not null;default:0" json:"generation_cost"`
	ErrorMessage    string         `gorm:"column:error_message" json:"error_message,omitempty"`
	StartedAt       *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Article) TableName() string { return "article" }

// SerpData is the persisted output of the SERP research stage.
type SerpData struct {
	CommonTopics []string     `json:"common_topics"`
	Questions    []string     `json:"questions,omitempty"`
	Results      []SerpResult `json:"results,omitempty"`
}

type SerpResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// Outline is the persisted output of the outline generation stage.
type Outline struct {
	Title           string           `json:"title"`
	MetaDescription string           `json:"meta_description"`
	Sections        []OutlineSection `json:"sections"`
}

type OutlineSection struct {
	Heading     string `json:"heading"`
	TargetWords int    `json:"target_words"`
	Notes       string `json:"notes,omitempty"`
}

const defaultTargetWordCount = 2000

// TargetWordCount sums the per-section targets, falling back to 2000 when no
// section carries a target.
func (o *Outline) TargetWordCount() int {
	if o == nil {
		return defaultTargetWordCount
	}
	total := 0
	for _, s := range o.Sections {
		if s.TargetWords > 0 {
			total += s.TargetWords
		}
	}
	if total == 0 {
		return defaultTargetWordCount
	}
	return total
}

func (a *Article) DecodeOutline() *Outline {
	if a == nil || len(a.Outline) == 0 {
		return nil
	}
	var o Outline
	if err := json.Unmarshal(a.Outline, &o); err != nil {
		return nil
	}
	return &o
}
