package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

type positionFixture struct {
	db        *gorm.DB
	service   PositionService
	taskRepo  repos.EvaluationTaskRepo
	inquiryID uuid.UUID
}

func newPositionFixture(t *testing.T) *positionFixture {
	t.Helper()
	f := newPipelineFixture(t)
	log := testLogger(t)
	inquiry := f.seedInquiry(t, "node-1")

	taskRepo := repos.NewEvaluationTaskRepo(f.db, log)
	catalog := &stubCatalog{weights: map[string]float64{"peer_reviewed_study": 1.0}}
	service := NewPositionService(
		f.db,
		log,
		repos.NewPositionRepo(f.db, log),
		repos.NewPositionVoteRepo(f.db, log),
		taskRepo,
		repos.NewInquiryRepo(f.db, log),
		catalog,
		f.pipeline,
		nopNotifier{},
	)
	return &positionFixture{db: f.db, service: service, taskRepo: taskRepo, inquiryID: inquiry.ID}
}

func TestPositionService_CreateEnqueuesEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newPositionFixture(t)

	position, err := f.service.Create(ctx, CreatePositionInput{
		InquiryID:        f.inquiryID,
		Stance:           types.StanceSupporting,
		Argument:         "Measurements at standard pressure give 99.98.",
		EvidenceCategory: "peer_reviewed_study",
		EvidenceLinks:    []string{"https://nature.com/articles/a1"},
		ActorID:          "contributor-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if position.Status != types.PositionStatusPendingEvaluation {
		t.Fatalf("expected pending_evaluation, got %q", position.Status)
	}
	if !almostEqual(position.EvidenceQuality, 0.5) || !almostEqual(position.SourceCredibility, 0.5) || !almostEqual(position.Coherence, 0.5) {
		t.Fatalf("expected 0.5 placeholders, got %+v", position)
	}

	task, err := f.taskRepo.GetLatestByPositionID(ctx, nil, position.ID)
	if err != nil {
		t.Fatalf("GetLatestByPositionID: %v", err)
	}
	if task == nil || task.Status != types.EvaluationTaskQueued {
		t.Fatalf("expected queued task, got %+v", task)
	}
}

func TestPositionService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newPositionFixture(t)

	base := CreatePositionInput{
		InquiryID:        f.inquiryID,
		Stance:           types.StanceSupporting,
		Argument:         "arg",
		EvidenceCategory: "peer_reviewed_study",
		ActorID:          "contributor-1",
	}

	cases := []struct {
		name   string
		mutate func(*CreatePositionInput)
	}{
		{"invalid stance", func(in *CreatePositionInput) { in.Stance = "maybe" }},
		{"empty argument", func(in *CreatePositionInput) { in.Argument = "  " }},
		{"unknown category", func(in *CreatePositionInput) { in.EvidenceCategory = "hearsay" }},
		{"missing actor", func(in *CreatePositionInput) { in.ActorID = "" }},
		{"relative evidence link", func(in *CreatePositionInput) { in.EvidenceLinks = []string{"not-a-url"} }},
		{"value without path", func(in *CreatePositionInput) { in.ProposedValue = "x" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			if _, err := f.service.Create(ctx, in); !pkgerrors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPositionService_VoteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newPositionFixture(t)

	position, err := f.service.Create(ctx, CreatePositionInput{
		InquiryID:        f.inquiryID,
		Stance:           types.StanceSupporting,
		Argument:         "arg",
		EvidenceCategory: "peer_reviewed_study",
		ActorID:          "contributor-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.service.CastVote(ctx, position.ID, "voter-1", true)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if got.Upvotes != 1 || got.Downvotes != 0 {
		t.Fatalf("counts after upvote: %d/%d", got.Upvotes, got.Downvotes)
	}

	// Re-voting flips, never stacks.
	got, err = f.service.CastVote(ctx, position.ID, "voter-1", false)
	if err != nil {
		t.Fatalf("CastVote flip: %v", err)
	}
	if got.Upvotes != 0 || got.Downvotes != 1 {
		t.Fatalf("counts after flip: %d/%d", got.Upvotes, got.Downvotes)
	}

	got, err = f.service.CastVote(ctx, position.ID, "voter-2", true)
	if err != nil {
		t.Fatalf("CastVote second voter: %v", err)
	}
	if got.Upvotes != 1 || got.Downvotes != 1 {
		t.Fatalf("counts with two voters: %d/%d", got.Upvotes, got.Downvotes)
	}

	got, err = f.service.RemoveVote(ctx, position.ID, "voter-1")
	if err != nil {
		t.Fatalf("RemoveVote: %v", err)
	}
	if got.Upvotes != 1 || got.Downvotes != 0 {
		t.Fatalf("counts after removal: %d/%d", got.Upvotes, got.Downvotes)
	}

	// Async rescores settle before the fixture database closes.
	time.Sleep(50 * time.Millisecond)
}

func TestPositionService_ListByInquiryGroupsTiers(t *testing.T) {
	ctx := context.Background()
	f := newPositionFixture(t)

	seed := func(status types.PositionStatus) {
		t.Helper()
		position := &types.Position{
			ID:               uuid.New(),
			InquiryID:        f.inquiryID,
			CreatedBy:        "contributor-1",
			Stance:           types.StanceSupporting,
			Argument:         "arg",
			EvidenceCategory: "peer_reviewed_study",
			Status:           status,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		if err := f.db.Create(position).Error; err != nil {
			t.Fatalf("seed position: %v", err)
		}
	}
	seed(types.PositionStatusVerified)
	seed(types.PositionStatusCredible)
	seed(types.PositionStatusCredible)
	seed(types.PositionStatusWeak)
	seed(types.PositionStatusExcluded)
	seed(types.PositionStatusPendingEvaluation)

	tiers, err := f.service.ListByInquiry(ctx, f.inquiryID)
	if err != nil {
		t.Fatalf("ListByInquiry: %v", err)
	}
	if len(tiers.Verified) != 1 || len(tiers.Credible) != 2 || len(tiers.Weak) != 1 ||
		len(tiers.Excluded) != 1 || len(tiers.Pending) != 1 {
		t.Fatalf("unexpected grouping: v=%d c=%d w=%d e=%d p=%d",
			len(tiers.Verified), len(tiers.Credible), len(tiers.Weak),
			len(tiers.Excluded), len(tiers.Pending))
	}
}

func TestPositionService_RetryEvaluationOnlyForDeadLetter(t *testing.T) {
	ctx := context.Background()
	f := newPositionFixture(t)

	position, err := f.service.Create(ctx, CreatePositionInput{
		InquiryID:        f.inquiryID,
		Stance:           types.StanceSupporting,
		Argument:         "arg",
		EvidenceCategory: "peer_reviewed_study",
		ActorID:          "contributor-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Queued task: nothing to retry.
	if err := f.service.RetryEvaluation(ctx, position.ID, "admin-1"); !pkgerrors.IsValidation(err) {
		t.Fatalf("expected validation error while queued, got %v", err)
	}

	task, err := f.taskRepo.GetLatestByPositionID(ctx, nil, position.ID)
	if err != nil || task == nil {
		t.Fatalf("load task: %v", err)
	}
	if err := f.taskRepo.UpdateFields(ctx, nil, task.ID, map[string]interface{}{
		"status": types.EvaluationTaskDeadLetter,
		"error":  "oracle unavailable",
	}); err != nil {
		t.Fatalf("dead-letter task: %v", err)
	}

	if err := f.service.RetryEvaluation(ctx, position.ID, "admin-1"); err != nil {
		t.Fatalf("RetryEvaluation: %v", err)
	}
	task, err = f.taskRepo.GetLatestByPositionID(ctx, nil, position.ID)
	if err != nil || task == nil {
		t.Fatalf("reload task: %v", err)
	}
	if task.Status != types.EvaluationTaskQueued {
		t.Fatalf("expected requeued, got %q", task.Status)
	}
	if task.Attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", task.Attempts)
	}
}
