package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type VoteCounts struct {
	Upvotes   int
	Downvotes int
}

type PositionVoteRepo interface {
	// Upsert records or replaces a voter's vote on a position. value must be +1 or -1.
	Upsert(ctx context.Context, tx *gorm.DB, positionID uuid.UUID, voterID string, value int) error
	Delete(ctx context.Context, tx *gorm.DB, positionID uuid.UUID, voterID string) error
	// Counts recomputes the aggregate from vote rows. The counters on the
	// position are a materialized cache of this query.
	Counts(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (VoteCounts, error)
}

type positionVoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPositionVoteRepo(db *gorm.DB, baseLog *logger.Logger) PositionVoteRepo {
	return &positionVoteRepo{db: db, log: baseLog.With("repo", "PositionVoteRepo")}
}

func (r *positionVoteRepo) Upsert(ctx context.Context, tx *gorm.DB, positionID uuid.UUID, voterID string, value int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if positionID == uuid.Nil || voterID == "" {
		return nil
	}
	now := time.Now()
	row := &types.PositionVote{
		ID:         uuid.New(),
		PositionID: positionID,
		VoterID:    voterID,
		Value:      value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "position_id"}, {Name: "voter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(row).Error
}

func (r *positionVoteRepo) Delete(ctx context.Context, tx *gorm.DB, positionID uuid.UUID, voterID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if positionID == uuid.Nil || voterID == "" {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("position_id = ? AND voter_id = ?", positionID, voterID).
		Delete(&types.PositionVote{}).Error
}

func (r *positionVoteRepo) Counts(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (VoteCounts, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var counts VoteCounts
	if positionID == uuid.Nil {
		return counts, nil
	}
	var up int64
	var down int64
	if err := transaction.WithContext(ctx).
		Model(&types.PositionVote{}).
		Where("position_id = ? AND value > 0", positionID).
		Count(&up).Error; err != nil {
		return counts, err
	}
	if err := transaction.WithContext(ctx).
		Model(&types.PositionVote{}).
		Where("position_id = ? AND value < 0", positionID).
		Count(&down).Error; err != nil {
		return counts, err
	}
	counts.Upvotes = int(up)
	counts.Downvotes = int(down)
	return counts, nil
}
