package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
	"github.com/veridia/veridia-backend/internal/utils"
)

// EvaluationWorker drains the evaluation task queue. Claiming goes through
// the database with SKIP LOCKED, so any number of replicas can run the loop.
type EvaluationWorker struct {
	db        *gorm.DB
	log       *logger.Logger
	tasks     repos.EvaluationTaskRepo
	positions repos.PositionRepo
	inquiries repos.InquiryRepo
	evaluator Evaluator
	pipeline  PipelineService

	pollInterval time.Duration
	evalTimeout  time.Duration
	maxAttempts  int
	retryDelay   time.Duration
	staleRunning time.Duration
}

func NewEvaluationWorker(
	db *gorm.DB,
	log *logger.Logger,
	tasks repos.EvaluationTaskRepo,
	positions repos.PositionRepo,
	inquiries repos.InquiryRepo,
	evaluator Evaluator,
	pipeline PipelineService,
) *EvaluationWorker {
	workerLog := log.With("service", "EvaluationWorker")
	return &EvaluationWorker{
		db:           db,
		log:          workerLog,
		tasks:        tasks,
		positions:    positions,
		inquiries:    inquiries,
		evaluator:    evaluator,
		pipeline:     pipeline,
		pollInterval: time.Duration(utils.GetEnvAsInt("EVAL_POLL_INTERVAL_SECONDS", 5, workerLog)) * time.Second,
		evalTimeout:  time.Duration(utils.GetEnvAsInt("EVAL_TIMEOUT_SECONDS", 120, workerLog)) * time.Second,
		maxAttempts:  utils.GetEnvAsInt("EVAL_MAX_ATTEMPTS", 3, workerLog),
		retryDelay:   time.Duration(utils.GetEnvAsInt("EVAL_RETRY_DELAY_SECONDS", 30, workerLog)) * time.Second,
		staleRunning: time.Duration(utils.GetEnvAsInt("EVAL_STALE_RUNNING_SECONDS", 300, workerLog)) * time.Second,
	}
}

// Start blocks until ctx is cancelled. Run it in its own goroutine.
func (w *EvaluationWorker) Start(ctx context.Context) {
	w.log.Info("evaluation worker started",
		"poll_interval", w.pollInterval.String(),
		"max_attempts", w.maxAttempts)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("evaluation worker stopped")
			return
		case <-ticker.C:
			// Drain everything runnable before sleeping again.
			for {
				claimed, err := w.runOne(ctx)
				if err != nil {
					w.log.Error("evaluation worker tick failed", "error", err)
					break
				}
				if !claimed {
					break
				}
			}
		}
	}
}

// runOne claims and processes a single task. Returns false when the queue had
// nothing runnable.
func (w *EvaluationWorker) runOne(ctx context.Context) (bool, error) {
	task, err := w.tasks.ClaimNextRunnable(ctx, nil, w.maxAttempts, w.retryDelay, w.staleRunning)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	log := w.log.With("task_id", task.ID, "position_id", task.PositionID, "attempt", task.Attempts)
	log.Info("evaluating position")

	if err := w.process(ctx, task); err != nil {
		w.markFailed(ctx, task, err, log)
		return true, nil
	}

	if err := w.tasks.UpdateFields(ctx, nil, task.ID, map[string]interface{}{
		"status":    types.EvaluationTaskSucceeded,
		"locked_at": nil,
		"error":     "",
	}); err != nil {
		log.Error("failed to mark task succeeded", "error", err)
	}
	log.Info("position evaluated")
	return true, nil
}

func (w *EvaluationWorker) process(ctx context.Context, task *types.EvaluationTask) error {
	evalCtx, cancel := context.WithTimeout(ctx, w.evalTimeout)
	defer cancel()

	position, err := w.positions.GetByID(evalCtx, nil, task.PositionID)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if position == nil {
		// Position deleted since enqueue; nothing to do.
		return nil
	}
	inquiry, err := w.inquiries.GetByID(evalCtx, nil, position.InquiryID)
	if err != nil {
		return fmt.Errorf("load inquiry: %w", err)
	}
	if inquiry == nil {
		return fmt.Errorf("inquiry %s: %w", position.InquiryID, pkgerrors.ErrNotFound)
	}

	links := DecodeEvidenceLinks(position.EvidenceLinks)

	heartbeatDone := w.startHeartbeat(evalCtx, task)
	result, err := w.evaluator.EvaluatePosition(evalCtx, inquiry.Type, position.Argument, position.EvidenceCategory, links)
	heartbeatDone()
	if err != nil {
		return err
	}

	return w.pipeline.ApplyEvaluation(evalCtx, position.ID, result)
}

// startHeartbeat keeps locked_at fresh while the oracle call is in flight so
// a slow evaluation is not reclaimed as stale by another replica.
func (w *EvaluationWorker) startHeartbeat(ctx context.Context, task *types.EvaluationTask) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.staleRunning / 3)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := w.tasks.Heartbeat(hbCtx, nil, task.ID); err != nil && !errors.Is(err, context.Canceled) {
					w.log.Warn("heartbeat failed", "task_id", task.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *EvaluationWorker) markFailed(ctx context.Context, task *types.EvaluationTask, cause error, log *logger.Logger) {
	now := time.Now()
	status := types.EvaluationTaskFailed
	if task.Attempts >= w.maxAttempts {
		status = types.EvaluationTaskDeadLetter
	}
	updates := map[string]interface{}{
		"status":        status,
		"error":         cause.Error(),
		"last_error_at": now,
		"locked_at":     nil,
	}
	if err := w.tasks.UpdateFields(ctx, nil, task.ID, updates); err != nil {
		log.Error("failed to record task failure", "error", err)
		return
	}
	if status == types.EvaluationTaskDeadLetter {
		// The position stays pending_evaluation; a privileged retry can
		// requeue it later.
		log.Error("evaluation dead-lettered", "error", cause)
		return
	}
	log.Warn("evaluation attempt failed, will retry", "error", cause)
}
