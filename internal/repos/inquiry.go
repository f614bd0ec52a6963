package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type InquiryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, inquiries []*types.Inquiry) ([]*types.Inquiry, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Inquiry, error)
	GetActiveByNodeID(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Inquiry, error)
	GetByNodeID(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Inquiry, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	GetRelatedNodes(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]string, error)
	ReplaceRelatedNodes(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID, nodeIDs []string) error
}

type inquiryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInquiryRepo(db *gorm.DB, baseLog *logger.Logger) InquiryRepo {
	return &inquiryRepo{db: db, log: baseLog.With("repo", "InquiryRepo")}
}

func (r *inquiryRepo) Create(ctx context.Context, tx *gorm.DB, inquiries []*types.Inquiry) ([]*types.Inquiry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(inquiries) == 0 {
		return []*types.Inquiry{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&inquiries).Error; err != nil {
		return nil, err
	}
	return inquiries, nil
}

func (r *inquiryRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Inquiry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Inquiry
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

func (r *inquiryRepo) GetActiveByNodeID(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Inquiry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Inquiry
	if nodeID == "" {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Where("node_id = ? AND status = ?", nodeID, types.InquiryStatusActive).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *inquiryRepo) GetByNodeID(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.Inquiry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Inquiry
	if nodeID == "" {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *inquiryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Inquiry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *inquiryRepo) GetRelatedNodes(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if inquiryID == uuid.Nil {
		return nil, nil
	}
	var rows []*types.InquiryRelatedNode
	err := transaction.WithContext(ctx).
		Where("inquiry_id = ?", inquiryID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row != nil && row.NodeID != "" {
			out = append(out, row.NodeID)
		}
	}
	return out, nil
}

func (r *inquiryRepo) ReplaceRelatedNodes(ctx context.Context, tx *gorm.DB, inquiryID uuid.UUID, nodeIDs []string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if inquiryID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("inquiry_id = ?", inquiryID).Delete(&types.InquiryRelatedNode{}).Error; err != nil {
			return err
		}
		if len(nodeIDs) == 0 {
			return nil
		}
		now := time.Now()
		rows := make([]*types.InquiryRelatedNode, 0, len(nodeIDs))
		for _, nodeID := range nodeIDs {
			if nodeID == "" {
				continue
			}
			rows = append(rows, &types.InquiryRelatedNode{
				ID:        uuid.New(),
				InquiryID: inquiryID,
				NodeID:    nodeID,
				CreatedAt: now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return txx.Create(&rows).Error
	})
}
