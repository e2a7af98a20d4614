package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	IntentInformational = "informational"
	IntentCommercial    = "commercial"
	IntentTransactional = "transactional"
	IntentNavigational  = "navigational"
)

// Keyword is a persisted opportunity, a child of one KeywordResearch run.
// Metric fields are written once by the pipeline; only the user-facing flags
// change afterwards.
type Keyword struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	KeywordResearchID uuid.UUID      `gorm:"type:uuid;not null;index" json:"keyword_research_id"`
	ProjectID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Term              string         `gorm:"column:term;not null;index" json:"term"`
	Volume            int            `gorm:"column:volume;not null;default:0" json:"volume"`
	Difficulty        float64        `gorm:"column:difficulty;not null;default:0" json:"difficulty"`
	Opportunity       float64        `gorm:"column:opportunity;not null;default:0;index" json:"opportunity"`
	CPC               float64        `gorm:"column:cpc;not null;default:0" json:"cpc"`
	Intent            string         `gorm:"column:intent" json:"intent"`
	Sources           datatypes.JSON `gorm:"column:sources;type:jsonb" json:"sources,omitempty"`
	Starred           bool           `gorm:"column:starred;not null;default:false" json:"starred"`
	Published         bool           `gorm:"column:published;not null;default:false" json:"published"`
	ScheduledAt       *time.Time     `gorm:"column:scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Keyword) TableName() string { return "keyword" }

// DiscoveredKeyword is an in-flight candidate term before metrics are
// calculated. Sources records which stages surfaced it.
type DiscoveredKeyword struct {
	Term    string   `json:"term"`
	Sources []string `json:"sources"`
}

// ScoredKeyword is a DiscoveredKeyword with computed metrics attached.
type ScoredKeyword struct {
	DiscoveredKeyword
	Volume      int     `json:"volume"`
	Difficulty  float64 `json:"difficulty"`
	CPC         float64 `json:"cpc"`
	Intent      string  `json:"intent"`
	Opportunity float64 `json:"opportunity"`
}
