package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

// RejectionSuperseded is recorded on auto-proposals that lose to an existing
// pending amendment for the same (node, field path).
const RejectionSuperseded = "superseded-by-existing-pending"

type ProposeAmendmentInput struct {
	NodeID      string
	FieldPath   string
	NewValue    any
	InquiryID   *uuid.UUID
	PositionID  *uuid.UUID
	ProposedBy  string
	Explanation string
}

type AmendmentEngine interface {
	// Propose creates a pending amendment, snapshotting the field's current
	// value. Fails with PendingAmendmentError when the path already has a
	// pending amendment.
	Propose(ctx context.Context, in ProposeAmendmentInput) (*types.NodeAmendment, error)
	// ProposeFromPosition is the auto-amend path for newly verified positions
	// with an explicit proposed change. A path conflict records an
	// auto-rejected amendment instead of failing.
	ProposeFromPosition(ctx context.Context, position *types.Position, inquiry *types.Inquiry) (*types.NodeAmendment, error)
	Approve(ctx context.Context, id uuid.UUID, actorID string) (*types.NodeAmendment, error)
	Reject(ctx context.Context, id uuid.UUID, actorID, reason string) (*types.NodeAmendment, error)
	ListByNode(ctx context.Context, nodeID string) ([]*types.NodeAmendment, error)
	History(ctx context.Context, nodeID, fieldPath string) ([]*types.AmendmentRecord, error)
}

type amendmentEngine struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      repos.NodeAmendmentRepo
	nodeStore graph.NodeStore
	notifier  Notifier

	// Per-(node, field path) mutual exclusion: the proposal check-then-create
	// and the application write must not interleave for the same path.
	pathMu    sync.Mutex
	pathLocks map[string]*sync.Mutex
}

func NewAmendmentEngine(db *gorm.DB, log *logger.Logger, repo repos.NodeAmendmentRepo, nodeStore graph.NodeStore, notifier Notifier) AmendmentEngine {
	return &amendmentEngine{
		db:        db,
		log:       log.With("service", "AmendmentEngine"),
		repo:      repo,
		nodeStore: nodeStore,
		notifier:  notifier,
		pathLocks: map[string]*sync.Mutex{},
	}
}

func (e *amendmentEngine) lockPath(nodeID, fieldPath string) func() {
	key := nodeID + "\x00" + fieldPath
	e.pathMu.Lock()
	lock, ok := e.pathLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.pathLocks[key] = lock
	}
	e.pathMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (e *amendmentEngine) Propose(ctx context.Context, in ProposeAmendmentInput) (*types.NodeAmendment, error) {
	amendment, err := e.buildProposal(ctx, in)
	if err != nil {
		return nil, err
	}

	// The pending check and the insert must be one atomic step, or two
	// concurrent proposals both see "no pending" and both create one. The
	// partial unique index on (node_id, field_path) WHERE pending backs
	// this across processes.
	unlock := e.lockPath(in.NodeID, in.FieldPath)
	defer unlock()

	existing, err := e.repo.GetPendingByNodePath(ctx, nil, in.NodeID, in.FieldPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &pkgerrors.PendingAmendmentError{
			ExistingAmendmentID: existing.ID,
			NodeID:              in.NodeID,
			FieldPath:           in.FieldPath,
		}
	}

	if _, err := e.repo.Create(ctx, nil, amendment); err != nil {
		return nil, fmt.Errorf("create amendment: %w", err)
	}

	e.notifier.Publish(ctx, in.NodeID, realtime.TopicAmendmentProposed, map[string]any{
		"amendment_id": amendment.ID,
		"node_id":      amendment.NodeID,
		"field_path":   amendment.FieldPath,
		"proposed_by":  amendment.ProposedBy,
	})
	return amendment, nil
}

func (e *amendmentEngine) ProposeFromPosition(ctx context.Context, position *types.Position, inquiry *types.Inquiry) (*types.NodeAmendment, error) {
	if position == nil || inquiry == nil {
		return nil, nil
	}
	if position.ProposedFieldPath == "" {
		return nil, nil
	}
	var proposedValue any
	if len(position.ProposedValue) > 0 {
		proposedValue = decodeAny(position.ProposedValue)
	}

	in := ProposeAmendmentInput{
		NodeID:      inquiry.NodeID,
		FieldPath:   position.ProposedFieldPath,
		NewValue:    proposedValue,
		InquiryID:   &inquiry.ID,
		PositionID:  &position.ID,
		ProposedBy:  position.CreatedBy,
		Explanation: position.Argument,
	}

	amendment, err := e.buildProposal(ctx, in)
	if err != nil {
		return nil, err
	}

	unlock := e.lockPath(in.NodeID, in.FieldPath)
	defer unlock()

	existing, err := e.repo.GetPendingByNodePath(ctx, nil, in.NodeID, in.FieldPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// The existing pending amendment stands; record the loser for audit.
		now := time.Now()
		amendment.Status = types.AmendmentStatusRejected
		amendment.RejectedAt = &now
		amendment.RejectedBy = "system"
		amendment.RejectionReason = RejectionSuperseded
		if _, err := e.repo.Create(ctx, nil, amendment); err != nil {
			return nil, fmt.Errorf("record superseded amendment: %w", err)
		}
		e.log.Info("auto-amendment superseded by existing pending",
			"node_id", in.NodeID, "field_path", in.FieldPath, "existing_id", existing.ID)
		return amendment, nil
	}

	if _, err := e.repo.Create(ctx, nil, amendment); err != nil {
		return nil, fmt.Errorf("create amendment: %w", err)
	}
	e.notifier.Publish(ctx, in.NodeID, realtime.TopicAmendmentProposed, map[string]any{
		"amendment_id": amendment.ID,
		"node_id":      amendment.NodeID,
		"field_path":   amendment.FieldPath,
		"position_id":  position.ID,
	})
	return amendment, nil
}

func (e *amendmentEngine) buildProposal(ctx context.Context, in ProposeAmendmentInput) (*types.NodeAmendment, error) {
	if in.NodeID == "" {
		return nil, pkgerrors.NewValidation("node_id", "target node is required")
	}
	if in.FieldPath == "" {
		return nil, pkgerrors.NewValidation("field_path", "field path is required")
	}
	if in.ProposedBy == "" {
		return nil, pkgerrors.NewValidation("proposed_by", "actor attribution is required")
	}

	// Validate the path against the live node and snapshot the current value.
	current, found, err := e.nodeStore.GetField(ctx, in.NodeID, in.FieldPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewValidation("field_path", fmt.Sprintf("path %q does not exist on node %s", in.FieldPath, in.NodeID))
	}

	now := time.Now()
	return &types.NodeAmendment{
		ID:            uuid.New(),
		NodeID:        in.NodeID,
		FieldPath:     in.FieldPath,
		OriginalValue: mustJSON(current),
		NewValue:      mustJSON(in.NewValue),
		InquiryID:     in.InquiryID,
		PositionID:    in.PositionID,
		ProposedBy:    in.ProposedBy,
		Explanation:   in.Explanation,
		Status:        types.AmendmentStatusPending,
		ProposedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (e *amendmentEngine) Approve(ctx context.Context, id uuid.UUID, actorID string) (*types.NodeAmendment, error) {
	amendment, err := e.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if amendment == nil {
		return nil, fmt.Errorf("amendment %s: %w", id, pkgerrors.ErrNotFound)
	}
	if amendment.Status != types.AmendmentStatusPending {
		return nil, pkgerrors.NewValidation("status", "amendment is not pending")
	}
	if actorID == "" {
		return nil, pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}

	unlock := e.lockPath(amendment.NodeID, amendment.FieldPath)
	defer unlock()

	// Snapshot the value actually being replaced; it may have moved since
	// proposal time and the history must show every intermediate value.
	prior, found, err := e.nodeStore.GetField(ctx, amendment.NodeID, amendment.FieldPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, pkgerrors.NewValidation("field_path", fmt.Sprintf("path %q no longer exists on node %s", amendment.FieldPath, amendment.NodeID))
	}

	newValue := decodeAny(amendment.NewValue)
	if err := e.nodeStore.SetField(ctx, amendment.NodeID, amendment.FieldPath, newValue); err != nil {
		return nil, fmt.Errorf("apply amendment: %w", err)
	}

	now := time.Now()
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.repo.UpdateFields(ctx, tx, amendment.ID, map[string]interface{}{
			"status":     types.AmendmentStatusApplied,
			"applied_at": now,
			"applied_by": actorID,
		}); err != nil {
			return err
		}
		return e.repo.AppendRecord(ctx, tx, &types.AmendmentRecord{
			ID:          uuid.New(),
			AmendmentID: amendment.ID,
			NodeID:      amendment.NodeID,
			FieldPath:   amendment.FieldPath,
			PriorValue:  mustJSON(prior),
			NewValue:    mustJSON(newValue),
			AppliedBy:   actorID,
			AppliedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	amendment.Status = types.AmendmentStatusApplied
	amendment.AppliedAt = &now
	amendment.AppliedBy = actorID

	e.notifier.Publish(ctx, amendment.NodeID, realtime.TopicAmendmentApplied, map[string]any{
		"amendment_id": amendment.ID,
		"node_id":      amendment.NodeID,
		"field_path":   amendment.FieldPath,
		"applied_by":   actorID,
	})
	return amendment, nil
}

func (e *amendmentEngine) Reject(ctx context.Context, id uuid.UUID, actorID, reason string) (*types.NodeAmendment, error) {
	amendment, err := e.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if amendment == nil {
		return nil, fmt.Errorf("amendment %s: %w", id, pkgerrors.ErrNotFound)
	}
	if amendment.Status != types.AmendmentStatusPending {
		return nil, pkgerrors.NewValidation("status", "amendment is not pending")
	}
	if actorID == "" {
		return nil, pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}
	if reason == "" {
		return nil, pkgerrors.NewValidation("reason", "rejection reason is required")
	}

	now := time.Now()
	if err := e.repo.UpdateFields(ctx, nil, amendment.ID, map[string]interface{}{
		"status":           types.AmendmentStatusRejected,
		"rejected_at":      now,
		"rejected_by":      actorID,
		"rejection_reason": reason,
	}); err != nil {
		return nil, err
	}

	amendment.Status = types.AmendmentStatusRejected
	amendment.RejectedAt = &now
	amendment.RejectedBy = actorID
	amendment.RejectionReason = reason

	e.notifier.Publish(ctx, amendment.NodeID, realtime.TopicAmendmentRejected, map[string]any{
		"amendment_id": amendment.ID,
		"node_id":      amendment.NodeID,
		"field_path":   amendment.FieldPath,
		"rejected_by":  actorID,
		"reason":       reason,
	})
	return amendment, nil
}

func (e *amendmentEngine) ListByNode(ctx context.Context, nodeID string) ([]*types.NodeAmendment, error) {
	if nodeID == "" {
		return nil, pkgerrors.NewValidation("node_id", "node id is required")
	}
	return e.repo.ListByNode(ctx, nil, nodeID)
}

func (e *amendmentEngine) History(ctx context.Context, nodeID, fieldPath string) ([]*types.AmendmentRecord, error) {
	if nodeID == "" {
		return nil, pkgerrors.NewValidation("node_id", "node id is required")
	}
	return e.repo.ListRecords(ctx, nil, nodeID, fieldPath)
}
