package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type ConfidenceAuditRepo interface {
	Append(ctx context.Context, tx *gorm.DB, audit *types.ConfidenceAudit) error
	ListByInquiry(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]*types.ConfidenceAudit, error)
}

type confidenceAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConfidenceAuditRepo(db *gorm.DB, baseLog *logger.Logger) ConfidenceAuditRepo {
	return &confidenceAuditRepo{db: db, log: baseLog.With("repo", "ConfidenceAuditRepo")}
}

func (r *confidenceAuditRepo) Append(ctx context.Context, tx *gorm.DB, audit *types.ConfidenceAudit) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if audit == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(audit).Error
}

func (r *confidenceAuditRepo) ListByInquiry(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]*types.ConfidenceAudit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ConfidenceAudit
	if inquiryID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Where("inquiry_id = ?", inquiryID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
