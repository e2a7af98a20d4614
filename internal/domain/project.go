package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Domain          string         `gorm:"column:domain;not null" json:"domain"`
	TargetWordCount int            `gorm:"column:target_word_count;not null;default:2000" json:"target_word_count"`
	Competitors     datatypes.JSON `gorm:"column:competitors;type:jsonb" json:"competitors"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }

// CompetitorURLs decodes the registered competitor list. Unregistered or
// malformed data reads as empty, never as an error.
func (p *Project) CompetitorURLs() []string {
	if p == nil || len(p.Competitors) == 0 {
		return nil
	}
	var urls []string
	if err := json.Unmarshal(p.Competitors, &urls); err != nil {
		return nil
	}
	out := urls[:0]
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, strings.TrimSpace(u))
		}
	}
	return out
}
