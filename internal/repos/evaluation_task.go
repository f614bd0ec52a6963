package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/types"
)

type EvaluationTaskRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error)
	// ClaimNextRunnable claims one task: queued, or failed below the attempt
	// cap past the retry delay, or running with a stale heartbeat. Uses
	// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never double-claim.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.EvaluationTask, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	GetLatestByPositionID(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error)
	// RequeueDeadLetter is the manual re-trigger for positions stuck in
	// pending_evaluation after retry exhaustion.
	RequeueDeadLetter(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error)
}

type evaluationTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvaluationTaskRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationTaskRepo {
	return &evaluationTaskRepo{db: db, log: baseLog.With("repo", "EvaluationTaskRepo")}
}

func (r *evaluationTaskRepo) Enqueue(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if positionID == uuid.Nil {
		return nil, nil
	}
	now := time.Now()
	task := &types.EvaluationTask{
		ID:         uuid.New(),
		PositionID: positionID,
		Status:     types.EvaluationTaskQueued,
		Attempts:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := transaction.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

func (r *evaluationTaskRepo) ClaimNextRunnable(
	ctx context.Context,
	tx *gorm.DB,
	maxAttempts int,
	retryDelay time.Duration,
	staleRunning time.Duration,
) (*types.EvaluationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *types.EvaluationTask

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var task types.EvaluationTask

		q := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status = ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, types.EvaluationTaskQueued, types.EvaluationTaskFailed, maxAttempts, retryCutoff, types.EvaluationTaskRunning, staleCutoff).
			Order("created_at ASC")

		qErr := q.First(&task).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&types.EvaluationTask{}).
			Where("id = ?", task.ID).
			Updates(map[string]interface{}{
				"status":       types.EvaluationTaskRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}

		task.Attempts++
		claimed = &task
		return nil
	})

	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *evaluationTaskRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.EvaluationTask{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *evaluationTaskRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.EvaluationTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *evaluationTaskRepo) GetLatestByPositionID(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if positionID == uuid.Nil {
		return nil, nil
	}
	var task types.EvaluationTask
	err := transaction.WithContext(ctx).
		Where("position_id = ?", positionID).
		Order("created_at DESC").
		Limit(1).
		Find(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == uuid.Nil {
		return nil, nil
	}
	return &task, nil
}

func (r *evaluationTaskRepo) RequeueDeadLetter(ctx context.Context, tx *gorm.DB, positionID uuid.UUID) (*types.EvaluationTask, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if positionID == uuid.Nil {
		return nil, nil
	}
	latest, err := r.GetLatestByPositionID(ctx, transaction, positionID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Status != types.EvaluationTaskDeadLetter {
		return nil, nil
	}
	now := time.Now()
	err = transaction.WithContext(ctx).
		Model(&types.EvaluationTask{}).
		Where("id = ?", latest.ID).
		Updates(map[string]interface{}{
			"status":        types.EvaluationTaskQueued,
			"attempts":      0,
			"error":         "",
			"last_error_at": nil,
			"locked_at":     nil,
			"heartbeat_at":  nil,
			"updated_at":    now,
		}).Error
	if err != nil {
		return nil, err
	}
	latest.Status = types.EvaluationTaskQueued
	latest.Attempts = 0
	return latest, nil
}
