package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

// PipelineService drives the causal chain for a position: evaluation
// completion, credibility computation, tier assignment, node-credibility
// recomputation, and the auto-amend check. Every step is idempotent; redundant
// rescores are harmless.
type PipelineService interface {
	// ApplyEvaluation overwrites the placeholder sub-scores with oracle output
	// and runs the downstream chain.
	ApplyEvaluation(ctx context.Context, positionID uuid.UUID, result *EvaluationResult) error
	// RescorePosition recomputes the credibility score from the latest
	// committed inputs and re-tiers. Scheduled after every vote mutation.
	RescorePosition(ctx context.Context, positionID uuid.UUID) error
	// RecomputeNodeCredibility aggregates included positions into the node
	// score. Concurrent calls for one node are coalesced.
	RecomputeNodeCredibility(ctx context.Context, nodeID string) error
	// ScheduleRescore runs RescorePosition off the caller's critical path.
	ScheduleRescore(positionID uuid.UUID)
}

type pipelineService struct {
	db           *gorm.DB
	log          *logger.Logger
	positionRepo repos.PositionRepo
	inquiryRepo  repos.InquiryRepo
	catalog      EvidenceCatalog
	registry     ThresholdRegistry
	nodeStore    graph.NodeStore
	amendments   AmendmentEngine
	notifier     Notifier

	recomputeGroup singleflight.Group
}

func NewPipelineService(
	db *gorm.DB,
	log *logger.Logger,
	positionRepo repos.PositionRepo,
	inquiryRepo repos.InquiryRepo,
	catalog EvidenceCatalog,
	registry ThresholdRegistry,
	nodeStore graph.NodeStore,
	amendments AmendmentEngine,
	notifier Notifier,
) PipelineService {
	return &pipelineService{
		db:           db,
		log:          log.With("service", "PipelineService"),
		positionRepo: positionRepo,
		inquiryRepo:  inquiryRepo,
		catalog:      catalog,
		registry:     registry,
		nodeStore:    nodeStore,
		amendments:   amendments,
		notifier:     notifier,
	}
}

func (s *pipelineService) ApplyEvaluation(ctx context.Context, positionID uuid.UUID, result *EvaluationResult) error {
	if result == nil {
		return pkgerrors.NewValidation("result", "evaluation result is required")
	}
	position, err := s.positionRepo.GetByID(ctx, nil, positionID)
	if err != nil {
		return err
	}
	if position == nil {
		return fmt.Errorf("position %s: %w", positionID, pkgerrors.ErrNotFound)
	}

	if err := s.positionRepo.UpdateFields(ctx, nil, positionID, map[string]interface{}{
		"evidence_quality": result.EvidenceQuality,
		"coherence":        result.Coherence,
		"ai_feedback":      mustJSON(result.Feedback),
		"evaluated":        true,
	}); err != nil {
		return fmt.Errorf("persist evaluation: %w", err)
	}

	return s.RescorePosition(ctx, positionID)
}

func (s *pipelineService) RescorePosition(ctx context.Context, positionID uuid.UUID) error {
	// Always re-read the latest committed state; a stale rescore is corrected
	// by the next one, which every mutation is guaranteed to schedule.
	position, err := s.positionRepo.GetByID(ctx, nil, positionID)
	if err != nil {
		return err
	}
	if position == nil {
		return fmt.Errorf("position %s: %w", positionID, pkgerrors.ErrNotFound)
	}
	inquiry, err := s.inquiryRepo.GetByID(ctx, nil, position.InquiryID)
	if err != nil {
		return err
	}
	if inquiry == nil {
		return fmt.Errorf("inquiry %s: %w", position.InquiryID, pkgerrors.ErrNotFound)
	}

	siblings, err := s.positionRepo.GetByInquiryID(ctx, nil, position.InquiryID)
	if err != nil {
		return err
	}

	weight := s.catalog.WeightFor(position.EvidenceCategory)
	sourceCred := SourceCredibilityScore(weight, position, siblings)
	score := PositionCredibility(CredibilityInputs{
		EvidenceQuality:   position.EvidenceQuality,
		Coherence:         position.Coherence,
		EvidenceWeight:    weight,
		SourceCredibility: sourceCred,
		Upvotes:           position.Upvotes,
		Downvotes:         position.Downvotes,
	})

	updates := map[string]interface{}{
		"source_credibility": sourceCred,
		"credibility_score":  score,
	}

	// Tier assignment applies only after the first evaluation completes; a
	// pending position keeps its placeholders and stays out of aggregation.
	oldStatus := position.Status
	newStatus := oldStatus
	if position.Evaluated {
		newStatus = TierFor(score, s.registry.For(inquiry.Type))
		updates["status"] = newStatus
	}

	if err := s.positionRepo.UpdateFields(ctx, nil, positionID, updates); err != nil {
		return fmt.Errorf("persist score: %w", err)
	}

	s.notifier.Publish(ctx, inquiry.NodeID, realtime.TopicPositionScored, map[string]any{
		"position_id":       positionID,
		"inquiry_id":        inquiry.ID,
		"credibility_score": score,
		"status":            newStatus,
	})

	if newStatus == oldStatus {
		return nil
	}

	s.notifier.Publish(ctx, inquiry.NodeID, realtime.TopicPositionTierChanged, map[string]any{
		"position_id": positionID,
		"inquiry_id":  inquiry.ID,
		"from":        oldStatus,
		"to":          newStatus,
	})

	// Tier persistence and node recomputation are deliberately separate
	// transactions: a recompute failure leaves the tier standing and is
	// retried; brief node-score staleness is tolerated.
	if err := s.RecomputeNodeCredibility(ctx, inquiry.NodeID); err != nil {
		s.log.Warn("node credibility recompute failed after tier change, retrying in background",
			"node_id", inquiry.NodeID, "error", err)
		s.retryRecompute(inquiry.NodeID)
	}

	// Crossing into verified triggers the auto-amend check.
	if newStatus == types.PositionStatusVerified && oldStatus != types.PositionStatusVerified {
		position.Status = newStatus
		position.CredibilityScore = score
		if _, err := s.amendments.ProposeFromPosition(ctx, position, inquiry); err != nil {
			s.log.Warn("auto-amend proposal failed", "position_id", positionID, "error", err)
		}
	}
	return nil
}

func (s *pipelineService) RecomputeNodeCredibility(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return pkgerrors.NewValidation("node_id", "node id is required")
	}
	_, err, _ := s.recomputeGroup.Do(nodeID, func() (any, error) {
		// One query gives a consistent snapshot of the included set; the write
		// is a single atomic property update, so the later of two racing
		// recomputes wins safely.
		positions, err := s.positionRepo.GetIncludedForNode(ctx, nil, nodeID)
		if err != nil {
			return nil, err
		}
		score, ok := NodeCredibility(positions)
		if !ok {
			return nil, nil
		}
		if err := s.nodeStore.SetCredibility(ctx, nodeID, score); err != nil {
			return nil, err
		}
		s.notifier.Publish(ctx, nodeID, realtime.TopicNodeCredibilityUpdated, map[string]any{
			"node_id":     nodeID,
			"credibility": score,
			"positions":   len(positions),
		})
		return nil, nil
	})
	return err
}

func (s *pipelineService) retryRecompute(nodeID string) {
	go func() {
		for attempt := 1; attempt <= 3; attempt++ {
			time.Sleep(time.Duration(attempt) * 5 * time.Second)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := s.RecomputeNodeCredibility(ctx, nodeID)
			cancel()
			if err == nil {
				return
			}
			s.log.Warn("node credibility recompute retry failed", "node_id", nodeID, "attempt", attempt, "error", err)
		}
	}()
}

func (s *pipelineService) ScheduleRescore(positionID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.RescorePosition(ctx, positionID); err != nil {
			s.log.Warn("scheduled rescore failed", "position_id", positionID, "error", err)
		}
	}()
}
