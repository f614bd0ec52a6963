package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

type CreateInquiryInput struct {
	NodeID         string
	EdgeID         string
	Type           types.InquiryType
	Title          string
	Description    string
	Justification  string
	RelatedNodeIDs []string
	ActorID        string
}

type InquiryService interface {
	Create(ctx context.Context, in CreateInquiryInput) (*types.Inquiry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Inquiry, error)
	ListByNode(ctx context.Context, nodeID string) ([]*types.Inquiry, error)
	Merge(ctx context.Context, id, intoID uuid.UUID, actorID string) error
	Close(ctx context.Context, id uuid.UUID, actorID string) error
	SetRelatedNodes(ctx context.Context, id uuid.UUID, nodeIDs []string, actorID string) error
}

type inquiryService struct {
	db           *gorm.DB
	log          *logger.Logger
	inquiryRepo  repos.InquiryRepo
	deduplicator Deduplicator
	pipeline     PipelineService
	notifier     Notifier
}

func NewInquiryService(db *gorm.DB, log *logger.Logger, inquiryRepo repos.InquiryRepo, deduplicator Deduplicator, pipeline PipelineService, notifier Notifier) InquiryService {
	return &inquiryService{
		db:           db,
		log:          log.With("service", "InquiryService"),
		inquiryRepo:  inquiryRepo,
		deduplicator: deduplicator,
		pipeline:     pipeline,
		notifier:     notifier,
	}
}

func (s *inquiryService) Create(ctx context.Context, in CreateInquiryInput) (*types.Inquiry, error) {
	if in.NodeID == "" {
		return nil, pkgerrors.NewValidation("node_id", "target node is required")
	}
	if !in.Type.Valid() {
		return nil, pkgerrors.NewValidation("type", "unknown inquiry type")
	}
	if in.Title == "" {
		return nil, pkgerrors.NewValidation("title", "title is required")
	}
	if in.Description == "" {
		return nil, pkgerrors.NewValidation("description", "description is required")
	}
	if in.ActorID == "" {
		return nil, pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}

	// Duplicate detection may degrade to "no duplicate found"; the embedding
	// is computed here exactly once and persisted with the inquiry.
	embedding, match, err := s.deduplicator.FindDuplicate(ctx, in.Title, in.Description, in.NodeID)
	if err != nil {
		return nil, err
	}

	justification := ""
	if match.AboveCutoff() {
		if !ValidJustification(in.Justification) {
			return nil, &pkgerrors.DuplicateInquiryError{
				ExistingInquiryID: match.InquiryID,
				Similarity:        match.Similarity,
			}
		}
		// Justification is stored for audit; its content is never evaluated.
		justification = in.Justification
	}

	now := time.Now()
	inquiry := &types.Inquiry{
		ID:                     uuid.New(),
		NodeID:                 in.NodeID,
		EdgeID:                 in.EdgeID,
		Type:                   in.Type,
		Title:                  in.Title,
		Description:            in.Description,
		Status:                 types.InquiryStatusActive,
		DuplicateJustification: justification,
		CreatedBy:              in.ActorID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if len(embedding) > 0 {
		inquiry.Embedding = mustJSON(embedding)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.inquiryRepo.Create(ctx, tx, []*types.Inquiry{inquiry}); err != nil {
			return fmt.Errorf("create inquiry: %w", err)
		}
		if len(in.RelatedNodeIDs) > 0 {
			if err := s.inquiryRepo.ReplaceRelatedNodes(ctx, tx, inquiry.ID, in.RelatedNodeIDs); err != nil {
				return fmt.Errorf("set related nodes: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, in.NodeID, realtime.TopicInquiryCreated, map[string]any{
		"inquiry_id": inquiry.ID,
		"node_id":    inquiry.NodeID,
		"type":       inquiry.Type,
		"title":      inquiry.Title,
	})
	return inquiry, nil
}

func (s *inquiryService) GetByID(ctx context.Context, id uuid.UUID) (*types.Inquiry, error) {
	inquiry, err := s.inquiryRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, fmt.Errorf("inquiry %s: %w", id, pkgerrors.ErrNotFound)
	}
	return inquiry, nil
}

func (s *inquiryService) ListByNode(ctx context.Context, nodeID string) ([]*types.Inquiry, error) {
	if nodeID == "" {
		return nil, pkgerrors.NewValidation("node_id", "node id is required")
	}
	return s.inquiryRepo.GetByNodeID(ctx, nil, nodeID)
}

// Merge soft-closes an inquiry into another. Inquiries are never physically
// deleted.
func (s *inquiryService) Merge(ctx context.Context, id, intoID uuid.UUID, actorID string) error {
	if id == intoID {
		return pkgerrors.NewValidation("merged_into_id", "inquiry cannot merge into itself")
	}
	target, err := s.GetByID(ctx, intoID)
	if err != nil {
		return err
	}
	if target.Status != types.InquiryStatusActive {
		return pkgerrors.NewValidation("merged_into_id", "merge target is not active")
	}
	source, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.inquiryRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"status":         types.InquiryStatusMerged,
		"merged_into_id": intoID,
	}); err != nil {
		return err
	}
	// Merging drops the inquiry's positions out of the included set, so the
	// node aggregate must be refreshed now rather than on the next tier move.
	if err := s.pipeline.RecomputeNodeCredibility(ctx, source.NodeID); err != nil {
		s.log.Warn("node recompute after merge failed", "node_id", source.NodeID, "error", err)
	}
	s.notifier.Publish(ctx, target.NodeID, realtime.TopicInquiryMerged, map[string]any{
		"inquiry_id":     id,
		"merged_into_id": intoID,
		"actor_id":       actorID,
	})
	return nil
}

func (s *inquiryService) Close(ctx context.Context, id uuid.UUID, actorID string) error {
	inquiry, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.inquiryRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"status": types.InquiryStatusClosed,
	}); err != nil {
		return err
	}
	if err := s.pipeline.RecomputeNodeCredibility(ctx, inquiry.NodeID); err != nil {
		s.log.Warn("node recompute after close failed", "node_id", inquiry.NodeID, "error", err)
	}
	return nil
}

func (s *inquiryService) SetRelatedNodes(ctx context.Context, id uuid.UUID, nodeIDs []string, actorID string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.inquiryRepo.ReplaceRelatedNodes(ctx, nil, id, nodeIDs)
}
