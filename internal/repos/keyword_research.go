package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

type KeywordResearchRepo interface {
	Create(dbc dbctx.Context, research *types.KeywordResearch) (*types.KeywordResearch, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KeywordResearch, error)
	ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.KeywordResearch, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsWhereStatus is the CAS guard for status transitions.
	UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, updates map[string]interface{}) (bool, error)
}

type keywordResearchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKeywordResearchRepo(db *gorm.DB, baseLog *logger.Logger) KeywordResearchRepo {
	return &keywordResearchRepo{db: db, log: baseLog.With("repo", "KeywordResearchRepo")}
}

func (r *keywordResearchRepo) Create(dbc dbctx.Context, research *types.KeywordResearch) (*types.KeywordResearch, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(research).Error; err != nil {
		return nil, err
	}
	return research, nil
}

func (r *keywordResearchRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KeywordResearch, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var research types.KeywordResearch
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&research).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &research, nil
}

func (r *keywordResearchRepo) ListByProject(dbc dbctx.Context, projectID uuid.UUID) ([]*types.KeywordResearch, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.KeywordResearch
	if projectID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *keywordResearchRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.KeywordResearch{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *keywordResearchRepo) UpdateFieldsWhereStatus(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return false, nil
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.KeywordResearch{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
