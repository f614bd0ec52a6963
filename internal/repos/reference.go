package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type EvidenceCategoryRepo interface {
	UpsertAll(ctx context.Context, tx *gorm.DB, categories []*types.EvidenceCategory) error
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.EvidenceCategory, error)
}

type evidenceCategoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvidenceCategoryRepo(db *gorm.DB, baseLog *logger.Logger) EvidenceCategoryRepo {
	return &evidenceCategoryRepo{db: db, log: baseLog.With("repo", "EvidenceCategoryRepo")}
}

func (r *evidenceCategoryRepo) UpsertAll(ctx context.Context, tx *gorm.DB, categories []*types.EvidenceCategory) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(categories) == 0 {
		return nil
	}
	now := time.Now()
	for _, c := range categories {
		if c != nil {
			c.UpdatedAt = now
		}
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "weight", "parent_code", "updated_at"}),
		}).
		Create(&categories).Error
}

func (r *evidenceCategoryRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.EvidenceCategory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.EvidenceCategory
	if err := transaction.WithContext(ctx).Order("code ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

type ThresholdSetRepo interface {
	UpsertAll(ctx context.Context, tx *gorm.DB, sets []*types.ThresholdSet) error
	GetAll(ctx context.Context, tx *gorm.DB) ([]*types.ThresholdSet, error)
}

type thresholdSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThresholdSetRepo(db *gorm.DB, baseLog *logger.Logger) ThresholdSetRepo {
	return &thresholdSetRepo{db: db, log: baseLog.With("repo", "ThresholdSetRepo")}
}

func (r *thresholdSetRepo) UpsertAll(ctx context.Context, tx *gorm.DB, sets []*types.ThresholdSet) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sets) == 0 {
		return nil
	}
	now := time.Now()
	for _, s := range sets {
		if s != nil {
			s.UpdatedAt = now
		}
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "inquiry_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"display", "inclusion", "auto_amend", "updated_at"}),
		}).
		Create(&sets).Error
}

func (r *thresholdSetRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*types.ThresholdSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ThresholdSet
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
