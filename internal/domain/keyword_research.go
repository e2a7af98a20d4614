package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ResearchStatusPending    = "pending"
	ResearchStatusProcessing = "processing"
	ResearchStatusCompleted  = "completed"
	ResearchStatusFailed     = "failed"
)

type KeywordResearch struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Status             string         `gorm:"column:status;not null;default:pending;index" json:"status"`
	SeedKeywords       datatypes.JSON `gorm:"column:seed_keywords;type:jsonb" json:"seed_keywords,omitempty"`
	TotalKeywordsFound int            `gorm:"column:total_keywords_found;not null;default:0" json:"total_keywords_found"`
	ResearchCost       float64        `gorm:"column:research_cost;not null;default:0" json:"research_cost"`
	ProgressLog        datatypes.JSON `gorm:"column:progress_log;type:jsonb" json:"progress_log,omitempty"`
	ErrorMessage       string         `gorm:"column:error_message" json:"error_message,omitempty"`
	StartedAt          *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (KeywordResearch) TableName() string { return "keyword_research" }

// ProgressEntry is one durable line of the research progress log.
type ProgressEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Indent  int       `json:"indent"`
}

// LogEntries decodes the progress log; malformed data reads as empty.
func (r *KeywordResearch) LogEntries() []ProgressEntry {
	if r == nil || len(r.ProgressLog) == 0 {
		return nil
	}
	var entries []ProgressEntry
	if err := json.Unmarshal(r.ProgressLog, &entries); err != nil {
		return nil
	}
	return entries
}

// AppendLogEntry appends in memory and returns the re-encoded log. The caller
// persists the returned JSON; the log is append-only by construction.
func (r *KeywordResearch) AppendLogEntry(entry ProgressEntry) datatypes.JSON {
	entries := append(r.LogEntries(), entry)
	b, err := json.Marshal(entries)
	if err != nil {
		return r.ProgressLog
	}
	r.ProgressLog = datatypes.JSON(b)
	return r.ProgressLog
}
