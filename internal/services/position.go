package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/realtime"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

const placeholderSubScore = 0.5

type CreatePositionInput struct {
	InquiryID        uuid.UUID
	Stance           types.Stance
	Argument         string
	EvidenceCategory string
	EvidenceLinks    []string
	// Explicit amendment intent; never inferred from the argument.
	ProposedFieldPath string
	ProposedValue     any
	ActorID           string
}

// PositionsByTier groups an inquiry's positions for read accessors.
type PositionsByTier struct {
	Verified []*types.Position `json:"verified"`
	Credible []*types.Position `json:"credible"`
	Weak     []*types.Position `json:"weak"`
	Excluded []*types.Position `json:"excluded"`
	Pending  []*types.Position `json:"pending"`
}

type PositionService interface {
	Create(ctx context.Context, in CreatePositionInput) (*types.Position, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Position, error)
	ListByInquiry(ctx context.Context, inquiryID uuid.UUID) (*PositionsByTier, error)
	CastVote(ctx context.Context, positionID uuid.UUID, voterID string, agree bool) (*types.Position, error)
	RemoveVote(ctx context.Context, positionID uuid.UUID, voterID string) (*types.Position, error)
	// RetryEvaluation requeues a dead-lettered evaluation. Privileged.
	RetryEvaluation(ctx context.Context, positionID uuid.UUID, actorID string) error
}

type positionService struct {
	db          *gorm.DB
	log         *logger.Logger
	positions   repos.PositionRepo
	votes       repos.PositionVoteRepo
	tasks       repos.EvaluationTaskRepo
	inquiryRepo repos.InquiryRepo
	catalog     EvidenceCatalog
	pipeline    PipelineService
	notifier    Notifier
}

func NewPositionService(
	db *gorm.DB,
	log *logger.Logger,
	positions repos.PositionRepo,
	votes repos.PositionVoteRepo,
	tasks repos.EvaluationTaskRepo,
	inquiryRepo repos.InquiryRepo,
	catalog EvidenceCatalog,
	pipeline PipelineService,
	notifier Notifier,
) PositionService {
	return &positionService{
		db:          db,
		log:         log.With("service", "PositionService"),
		positions:   positions,
		votes:       votes,
		tasks:       tasks,
		inquiryRepo: inquiryRepo,
		catalog:     catalog,
		pipeline:    pipeline,
		notifier:    notifier,
	}
}

func (s *positionService) Create(ctx context.Context, in CreatePositionInput) (*types.Position, error) {
	if in.InquiryID == uuid.Nil {
		return nil, pkgerrors.NewValidation("inquiry_id", "inquiry is required")
	}
	if !in.Stance.Valid() {
		return nil, pkgerrors.NewValidation("stance", "stance must be supporting, opposing or neutral")
	}
	if strings.TrimSpace(in.Argument) == "" {
		return nil, pkgerrors.NewValidation("argument", "argument text is required")
	}
	if in.ActorID == "" {
		return nil, pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}
	if _, ok := s.catalog.Get(in.EvidenceCategory); !ok {
		return nil, pkgerrors.NewValidation("evidence_category", fmt.Sprintf("unknown evidence category %q", in.EvidenceCategory))
	}
	for _, link := range in.EvidenceLinks {
		if u, err := url.Parse(strings.TrimSpace(link)); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, pkgerrors.NewValidation("evidence_links", fmt.Sprintf("%q is not an absolute URI", link))
		}
	}
	if in.ProposedFieldPath == "" && in.ProposedValue != nil {
		return nil, pkgerrors.NewValidation("proposed_field_path", "a proposed value requires a field path")
	}

	inquiry, err := s.inquiryRepo.GetByID(ctx, nil, in.InquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, fmt.Errorf("inquiry %s: %w", in.InquiryID, pkgerrors.ErrNotFound)
	}
	if inquiry.Status != types.InquiryStatusActive {
		return nil, pkgerrors.NewValidation("inquiry_id", "inquiry is not active")
	}

	now := time.Now()
	position := &types.Position{
		ID:                uuid.New(),
		InquiryID:         in.InquiryID,
		CreatedBy:         in.ActorID,
		Stance:            in.Stance,
		Argument:          in.Argument,
		EvidenceCategory:  in.EvidenceCategory,
		EvidenceLinks:     mustJSON(in.EvidenceLinks),
		EvidenceQuality:   placeholderSubScore,
		SourceCredibility: placeholderSubScore,
		Coherence:         placeholderSubScore,
		Status:            types.PositionStatusPendingEvaluation,
		ProposedFieldPath: in.ProposedFieldPath,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.ProposedValue != nil {
		position.ProposedValue = mustJSON(in.ProposedValue)
	}

	// Position is visible immediately; evaluation runs off the critical path.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.positions.Create(ctx, tx, []*types.Position{position}); err != nil {
			return fmt.Errorf("create position: %w", err)
		}
		if _, err := s.tasks.Enqueue(ctx, tx, position.ID); err != nil {
			return fmt.Errorf("enqueue evaluation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, inquiry.NodeID, realtime.TopicPositionCreated, map[string]any{
		"position_id": position.ID,
		"inquiry_id":  inquiry.ID,
		"stance":      position.Stance,
	})
	return position, nil
}

func (s *positionService) GetByID(ctx context.Context, id uuid.UUID) (*types.Position, error) {
	position, err := s.positions.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("position %s: %w", id, pkgerrors.ErrNotFound)
	}
	return position, nil
}

func (s *positionService) ListByInquiry(ctx context.Context, inquiryID uuid.UUID) (*PositionsByTier, error) {
	positions, err := s.positions.GetByInquiryID(ctx, nil, inquiryID)
	if err != nil {
		return nil, err
	}
	out := &PositionsByTier{}
	for _, p := range positions {
		switch p.Status {
		case types.PositionStatusVerified:
			out.Verified = append(out.Verified, p)
		case types.PositionStatusCredible:
			out.Credible = append(out.Credible, p)
		case types.PositionStatusWeak:
			out.Weak = append(out.Weak, p)
		case types.PositionStatusExcluded:
			out.Excluded = append(out.Excluded, p)
		default:
			out.Pending = append(out.Pending, p)
		}
	}
	return out, nil
}

// CastVote records community sentiment. Votes touch credibility only through
// the bounded community-vote term of the formula, recomputed off this path.
func (s *positionService) CastVote(ctx context.Context, positionID uuid.UUID, voterID string, agree bool) (*types.Position, error) {
	if voterID == "" {
		return nil, pkgerrors.NewValidation("voter_id", "actor attribution is required")
	}
	value := 1
	if !agree {
		value = -1
	}
	return s.mutateVote(ctx, positionID, func(tx *gorm.DB) error {
		return s.votes.Upsert(ctx, tx, positionID, voterID, value)
	})
}

func (s *positionService) RemoveVote(ctx context.Context, positionID uuid.UUID, voterID string) (*types.Position, error) {
	if voterID == "" {
		return nil, pkgerrors.NewValidation("voter_id", "actor attribution is required")
	}
	return s.mutateVote(ctx, positionID, func(tx *gorm.DB) error {
		return s.votes.Delete(ctx, tx, positionID, voterID)
	})
}

func (s *positionService) mutateVote(ctx context.Context, positionID uuid.UUID, mutate func(tx *gorm.DB) error) (*types.Position, error) {
	position, err := s.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}

	// Vote row mutation and the counter refresh commit together; the counters
	// are a materialized cache of the vote rows.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mutate(tx); err != nil {
			return err
		}
		counts, err := s.votes.Counts(ctx, tx, positionID)
		if err != nil {
			return err
		}
		position.Upvotes = counts.Upvotes
		position.Downvotes = counts.Downvotes
		return s.positions.SetVoteCounts(ctx, tx, positionID, counts.Upvotes, counts.Downvotes)
	})
	if err != nil {
		return nil, err
	}

	// Every vote change schedules a rescore, even when one is already in
	// flight; rescoring re-reads the latest counters and is idempotent.
	s.pipeline.ScheduleRescore(positionID)
	return position, nil
}

func (s *positionService) RetryEvaluation(ctx context.Context, positionID uuid.UUID, actorID string) error {
	if actorID == "" {
		return pkgerrors.NewValidation("actor_id", "actor attribution is required")
	}
	if _, err := s.GetByID(ctx, positionID); err != nil {
		return err
	}
	task, err := s.tasks.RequeueDeadLetter(ctx, nil, positionID)
	if err != nil {
		return err
	}
	if task == nil {
		return pkgerrors.NewValidation("position_id", "no dead-lettered evaluation to retry")
	}
	s.log.Info("evaluation requeued", "position_id", positionID, "task_id", task.ID, "actor_id", actorID)
	return nil
}
