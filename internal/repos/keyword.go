package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

type KeywordRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Keyword, error)
	ListByResearch(dbc dbctx.Context, researchID uuid.UUID) ([]*types.Keyword, error)
	// ReplaceForResearch deletes prior children and inserts the new batch in
	// one transaction, keeping the save stage idempotent across retries.
	ReplaceForResearch(dbc dbctx.Context, researchID uuid.UUID, keywords []*types.Keyword) error
}

type keywordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKeywordRepo(db *gorm.DB, baseLog *logger.Logger) KeywordRepo {
	return &keywordRepo{db: db, log: baseLog.With("repo", "KeywordRepo")}
}

func (r *keywordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Keyword, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var keyword types.Keyword
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&keyword).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &keyword, nil
}

func (r *keywordRepo) ListByResearch(dbc dbctx.Context, researchID uuid.UUID) ([]*types.Keyword, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Keyword
	if researchID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("keyword_research_id = ?", researchID).
		Order("opportunity DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *keywordRepo) ReplaceForResearch(dbc dbctx.Context, researchID uuid.UUID, keywords []*types.Keyword) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if researchID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("keyword_research_id = ?", researchID).
			Delete(&types.Keyword{}).Error; err != nil {
			return err
		}
		if len(keywords) == 0 {
			return nil
		}
		return txx.Create(&keywords).Error
	})
}
