package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type NodeAmendmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, amendment *types.NodeAmendment) (*types.NodeAmendment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NodeAmendment, error)
	GetPendingByNodePath(ctx context.Context, tx *gorm.DB, nodeID, fieldPath string) (*types.NodeAmendment, error)
	ListByNode(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.NodeAmendment, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	AppendRecord(ctx context.Context, tx *gorm.DB, record *types.AmendmentRecord) error
	ListRecords(ctx context.Context, tx *gorm.DB, nodeID, fieldPath string) ([]*types.AmendmentRecord, error)
}

type nodeAmendmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNodeAmendmentRepo(db *gorm.DB, baseLog *logger.Logger) NodeAmendmentRepo {
	return &nodeAmendmentRepo{db: db, log: baseLog.With("repo", "NodeAmendmentRepo")}
}

func (r *nodeAmendmentRepo) Create(ctx context.Context, tx *gorm.DB, amendment *types.NodeAmendment) (*types.NodeAmendment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if amendment == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(amendment).Error; err != nil {
		return nil, err
	}
	return amendment, nil
}

func (r *nodeAmendmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NodeAmendment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.NodeAmendment
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

func (r *nodeAmendmentRepo) GetPendingByNodePath(ctx context.Context, tx *gorm.DB, nodeID, fieldPath string) (*types.NodeAmendment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if nodeID == "" || fieldPath == "" {
		return nil, nil
	}
	var row types.NodeAmendment
	err := transaction.WithContext(ctx).
		Where("node_id = ? AND field_path = ? AND status = ?", nodeID, fieldPath, types.AmendmentStatusPending).
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

func (r *nodeAmendmentRepo) ListByNode(ctx context.Context, tx *gorm.DB, nodeID string) ([]*types.NodeAmendment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.NodeAmendment
	if nodeID == "" {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("proposed_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *nodeAmendmentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.NodeAmendment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *nodeAmendmentRepo) AppendRecord(ctx context.Context, tx *gorm.DB, record *types.AmendmentRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(record).Error
}

func (r *nodeAmendmentRepo) ListRecords(ctx context.Context, tx *gorm.DB, nodeID, fieldPath string) ([]*types.AmendmentRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.AmendmentRecord
	if nodeID == "" {
		return results, nil
	}
	q := transaction.WithContext(ctx).Where("node_id = ?", nodeID)
	if fieldPath != "" {
		q = q.Where("field_path = ?", fieldPath)
	}
	if err := q.Order("applied_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
