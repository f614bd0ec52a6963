package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type PositionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, positions []*types.Position) ([]*types.Position, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Position, error)
	GetByInquiryID(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]*types.Position, error)
	// GetIncludedForNode returns positions at an included tier across all active
	// inquiries targeting the node. Runs in one query so node aggregation sees a
	// consistent snapshot.
	GetIncludedForNode(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Position, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SetVoteCounts(ctx context.Context, tx *gorm.DB, id uuid.UUID, upvotes, downvotes int) error
}

type positionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPositionRepo(db *gorm.DB, baseLog *logger.Logger) PositionRepo {
	return &positionRepo{db: db, log: baseLog.With("repo", "PositionRepo")}
}

func (r *positionRepo) Create(ctx context.Context, tx *gorm.DB, positions []*types.Position) ([]*types.Position, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(positions) == 0 {
		return []*types.Position{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Position, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Position
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *positionRepo) GetByInquiryID(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]*types.Position, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Position
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

func (r *positionRepo) GetIncludedForNode(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Position, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Position
	if nodeID == "" {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Joins("JOIN inquiry ON inquiry.id = position.inquiry_id").
		Where("inquiry.node_id = ? AND inquiry.status = ?", nodeID, types.InquiryStatusActive).
		Where("position.status IN ?", []types.PositionStatus{types.PositionStatusVerified, types.PositionStatusCredible}).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *positionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Position{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *positionRepo) SetVoteCounts(ctx context.Context, tx *gorm.DB, id uuid.UUID, upvotes, downvotes int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"upvotes":    upvotes,
			"downvotes":  downvotes,
			"updated_at": time.Now(),
		}).Error
}
