package services

import (
	"context"
	"fmt"
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

// ConfidenceResult reports one confidence evaluation, including the ceiling
// applied when related-node credibility was the limiting factor.
type ConfidenceResult struct {
	InquiryID    uuid.UUID `json:"inquiry_id"`
	RawScore     float64   `json:"raw_score"`
	StoredScore  float64   `json:"stored_score"`
	LimitingNode string    `json:"limiting_node,omitempty"`
}

type ConfidenceService interface {
	Evaluate(ctx context.Context, inquiryID uuid.UUID, actorID string) (*ConfidenceResult, error)
	History(ctx context.Context, inquiryID uuid.UUID) ([]*types.ConfidenceAudit, error)
}

type confidenceService struct {
	db        *gorm.DB
	log       *logger.Logger
	inquiries repos.InquiryRepo
	positions repos.PositionRepo
	audits    repos.ConfidenceAuditRepo
	evaluator Evaluator
	nodes     graph.NodeStore
	notifier  Notifier
}

func NewConfidenceService(
	db *gorm.DB,
	log *logger.Logger,
	inquiries repos.InquiryRepo,
	positions repos.PositionRepo,
	audits repos.ConfidenceAuditRepo,
	evaluator Evaluator,
	nodes graph.NodeStore,
	notifier Notifier,
) ConfidenceService {
	return &confidenceService{
		db:        db,
		log:       log.With("service", "ConfidenceService"),
		inquiries: inquiries,
		positions: positions,
		audits:    audits,
		evaluator: evaluator,
		nodes:     nodes,
		notifier:  notifier,
	}
}

// Evaluate scores the inquiry's overall confidence and stores it, capped at
// the lowest credibility among its related nodes. A conclusion can never be
// more trusted than the weakest node it rests on.
func (s *confidenceService) Evaluate(ctx context.Context, inquiryID uuid.UUID, actorID string) (*ConfidenceResult, error) {
	if actorID == "" {
		return nil, pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}
	inquiry, err := s.inquiries.GetByID(ctx, nil, inquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, fmt.Errorf("inquiry %s: %w", inquiryID, pkgerrors.ErrNotFound)
	}
	if inquiry.Status != types.InquiryStatusActive {
		return nil, pkgerrors.NewValidation("inquiry_id", "inquiry is not active")
	}

	evalCtx, err := s.buildContext(ctx, inquiry)
	if err != nil {
		return nil, err
	}

	rawScore, err := s.evaluator.EvaluateConfidence(ctx, *evalCtx)
	if err != nil {
		return nil, err
	}

	storedScore := rawScore
	limitingNode := ""
	relatedNodes, err := s.inquiries.GetRelatedNodes(ctx, nil, inquiryID)
	if err != nil {
		return nil, err
	}
	for _, nodeID := range relatedNodes {
		credibility, err := s.nodes.GetCredibility(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("credibility of node %s: %w", nodeID, err)
		}
		if credibility < storedScore {
			storedScore = credibility
			limitingNode = nodeID
		}
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.inquiries.UpdateFields(ctx, tx, inquiryID, map[string]interface{}{
			"confidence": storedScore,
		}); err != nil {
			return err
		}
		return s.audits.Append(ctx, tx, &types.ConfidenceAudit{
			ID:           uuid.New(),
			InquiryID:    inquiryID,
			RawScore:     rawScore,
			StoredScore:  storedScore,
			LimitingNode: limitingNode,
			EvaluatedBy:  actorID,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	if limitingNode != "" {
		s.log.Info("confidence capped by node credibility",
			"inquiry_id", inquiryID, "raw_score", rawScore,
			"stored_score", storedScore, "limiting_node", limitingNode)
	}
	s.notifier.Publish(ctx, inquiry.NodeID, realtime.TopicInquiryConfidenceUpdated, map[string]any{
		"inquiry_id":    inquiryID,
		"confidence":    storedScore,
		"limiting_node": limitingNode,
	})
	return &ConfidenceResult{
		InquiryID:    inquiryID,
		RawScore:     rawScore,
		StoredScore:  storedScore,
		LimitingNode: limitingNode,
	}, nil
}

func (s *confidenceService) History(ctx context.Context, inquiryID uuid.UUID) ([]*types.ConfidenceAudit, error) {
	return s.audits.ListByInquiry(ctx, nil, inquiryID)
}

// buildContext assembles the oracle input from included positions only. The
// ConfidenceContext type carries no vote or score fields, so community
// sentiment cannot reach this evaluation track.
func (s *confidenceService) buildContext(ctx context.Context, inquiry *types.Inquiry) (*ConfidenceContext, error) {
	positions, err := s.positions.GetByInquiryID(ctx, nil, inquiry.ID)
	if err != nil {
		return nil, err
	}
	evalCtx := &ConfidenceContext{
		InquiryType: inquiry.Type,
		Title:       inquiry.Title,
		Description: inquiry.Description,
	}
	for _, p := range positions {
		if !p.Status.Included() {
			continue
		}
		evalCtx.ArgumentSummaries = append(evalCtx.ArgumentSummaries, ConfidenceArgument{
			Stance:   p.Stance,
			Argument: p.Argument,
		})
	}
	return evalCtx, nil
}
