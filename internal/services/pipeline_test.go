package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

// stubCatalog serves a fixed weight table without a database.
type stubCatalog struct {
	weights map[string]float64
}

func (c *stubCatalog) WeightFor(code string) float64 {
	if w, ok := c.weights[code]; ok {
		return w
	}
	return 0.5
}

func (c *stubCatalog) Get(code string) (*types.EvidenceCategory, bool) {
	w, ok := c.weights[code]
	if !ok {
		return nil, false
	}
	return &types.EvidenceCategory{Code: code, Weight: w}, true
}

func (c *stubCatalog) All() []*types.EvidenceCategory { return nil }

func (c *stubCatalog) UpsertAll(ctx context.Context, categories []*types.EvidenceCategory) error {
	return nil
}

func (c *stubCatalog) Reload(ctx context.Context) error { return nil }

// stubRegistry serves the default thresholds for every inquiry type.
type stubRegistry struct{}

func (stubRegistry) For(t types.InquiryType) types.ThresholdSet {
	return types.ThresholdSet{InquiryType: t, Display: 0.30, Inclusion: 0.55, AutoAmend: 0.85}
}
func (stubRegistry) All() []*types.ThresholdSet { return nil }
func (stubRegistry) UpsertAll(ctx context.Context, sets []*types.ThresholdSet) error {
	return nil
}
func (stubRegistry) Reload(ctx context.Context) error { return nil }

type pipelineFixture struct {
	db       *gorm.DB
	store    *graph.MemoryNodeStore
	pipeline PipelineService
	engine   AmendmentEngine
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := openTestDB(t)
	log := testLogger(t)
	store := graph.NewMemoryNodeStore()
	store.SeedNode("node-1", map[string]any{
		"title": "Water",
		"properties": map[string]any{
			"boiling_point": 100.0,
		},
	}, 0.5)

	catalog := &stubCatalog{weights: map[string]float64{"peer_reviewed_study": 1.0, "blog_post": 0.35}}
	engine := NewAmendmentEngine(db, log, repos.NewNodeAmendmentRepo(db, log), store, nopNotifier{})
	pipeline := NewPipelineService(
		db,
		log,
		repos.NewPositionRepo(db, log),
		repos.NewInquiryRepo(db, log),
		catalog,
		stubRegistry{},
		store,
		engine,
		nopNotifier{},
	)
	return &pipelineFixture{db: db, store: store, pipeline: pipeline, engine: engine}
}

func (f *pipelineFixture) seedInquiry(t *testing.T, nodeID string) *types.Inquiry {
	t.Helper()
	inquiry := &types.Inquiry{
		ID:          uuid.New(),
		NodeID:      nodeID,
		Type:        types.InquiryTypeFactualAccuracy,
		Title:       "Is the boiling point correct?",
		Description: "Several sources disagree with the stated value.",
		Status:      types.InquiryStatusActive,
		CreatedBy:   "contributor-1",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := f.db.Create(inquiry).Error; err != nil {
		t.Fatalf("seed inquiry: %v", err)
	}
	return inquiry
}

func (f *pipelineFixture) seedPosition(t *testing.T, inquiry *types.Inquiry, mutate func(*types.Position)) *types.Position {
	t.Helper()
	position := &types.Position{
		ID:                uuid.New(),
		InquiryID:         inquiry.ID,
		CreatedBy:         "contributor-2",
		Stance:            types.StanceSupporting,
		Argument:          "Measurements at standard pressure give 99.98.",
		EvidenceCategory:  "peer_reviewed_study",
		EvidenceLinks:     mustJSON([]string{"https://nature.com/articles/a1"}),
		EvidenceQuality:   0.5,
		SourceCredibility: 0.5,
		Coherence:         0.5,
		Status:            types.PositionStatusPendingEvaluation,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if mutate != nil {
		mutate(position)
	}
	if err := f.db.Create(position).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}
	return position
}

func (f *pipelineFixture) reload(t *testing.T, id uuid.UUID) *types.Position {
	t.Helper()
	var position types.Position
	if err := f.db.First(&position, "id = ?", id).Error; err != nil {
		t.Fatalf("reload position: %v", err)
	}
	return &position
}

func TestPipeline_ApplyEvaluationPromotesToVerified(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	inquiry := f.seedInquiry(t, "node-1")
	position := f.seedPosition(t, inquiry, func(p *types.Position) {
		p.Upvotes = 12
		p.Downvotes = 2
	})

	err := f.pipeline.ApplyEvaluation(ctx, position.ID, &EvaluationResult{
		EvidenceQuality: 0.9,
		Coherence:       0.85,
		Feedback: types.AIFeedbackPayload{
			Strengths: []string{"cites primary measurements"},
		},
	})
	if err != nil {
		t.Fatalf("ApplyEvaluation: %v", err)
	}

	got := f.reload(t, position.ID)
	if !got.Evaluated {
		t.Fatalf("expected evaluated=true")
	}
	if got.Status != types.PositionStatusVerified {
		t.Fatalf("expected verified, got %q (score %v)", got.Status, got.CredibilityScore)
	}
	want := 0.50*0.9*1.0 + 0.25*1.0 + 0.20*0.85 + 0.05*CommunityVoteScore(12, 2)
	if !almostEqual(got.CredibilityScore, want) {
		t.Fatalf("score %v, want %v", got.CredibilityScore, want)
	}

	// Tier change propagated into the node score.
	credibility, err := f.store.GetCredibility(ctx, "node-1")
	if err != nil {
		t.Fatalf("GetCredibility: %v", err)
	}
	if !almostEqual(credibility, (want+1)/2) {
		t.Fatalf("node credibility %v, want %v", credibility, (want+1)/2)
	}
}

func TestPipeline_PendingPositionKeepsTierOnVoteRescore(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	inquiry := f.seedInquiry(t, "node-1")
	position := f.seedPosition(t, inquiry, func(p *types.Position) {
		p.Upvotes = 50
	})

	if err := f.pipeline.RescorePosition(ctx, position.ID); err != nil {
		t.Fatalf("RescorePosition: %v", err)
	}
	got := f.reload(t, position.ID)
	if got.Status != types.PositionStatusPendingEvaluation {
		t.Fatalf("unevaluated position must keep pending status, got %q", got.Status)
	}
	if got.CredibilityScore == 0 {
		t.Fatalf("score should still be computed for display")
	}
	// Placeholder sub-scores untouched by rescoring.
	if !almostEqual(got.EvidenceQuality, 0.5) || !almostEqual(got.Coherence, 0.5) {
		t.Fatalf("sub-scores changed without evaluation: %v %v", got.EvidenceQuality, got.Coherence)
	}
}

func TestPipeline_VotesCannotCrossTierAlone(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	inquiry := f.seedInquiry(t, "node-1")
	// Evaluated mid-credible position on a weak category.
	position := f.seedPosition(t, inquiry, func(p *types.Position) {
		p.EvidenceCategory = "blog_post"
		p.EvidenceQuality = 0.6
		p.Coherence = 0.6
		p.Evaluated = true
		p.Status = types.PositionStatusWeak
	})

	if err := f.pipeline.RescorePosition(ctx, position.ID); err != nil {
		t.Fatalf("baseline rescore: %v", err)
	}
	baseline := f.reload(t, position.ID)

	// Flood with upvotes; the community term is capped at 5%.
	if err := f.db.Model(&types.Position{}).Where("id = ?", position.ID).
		Update("upvotes", 100000).Error; err != nil {
		t.Fatalf("set votes: %v", err)
	}
	if err := f.pipeline.RescorePosition(ctx, position.ID); err != nil {
		t.Fatalf("rescore after votes: %v", err)
	}
	flooded := f.reload(t, position.ID)

	delta := flooded.CredibilityScore - baseline.CredibilityScore
	if delta > 0.05+1e-9 {
		t.Fatalf("votes moved score by %v, cap is 0.05", delta)
	}
	if baseline.Status != flooded.Status {
		t.Fatalf("vote flood changed tier: %q -> %q", baseline.Status, flooded.Status)
	}
}

func TestPipeline_VerifiedWithIntentProposesAmendment(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	inquiry := f.seedInquiry(t, "node-1")
	position := f.seedPosition(t, inquiry, func(p *types.Position) {
		p.ProposedFieldPath = "properties.boiling_point"
		p.ProposedValue = mustJSON(99.98)
	})

	err := f.pipeline.ApplyEvaluation(ctx, position.ID, &EvaluationResult{
		EvidenceQuality: 0.95,
		Coherence:       0.9,
	})
	if err != nil {
		t.Fatalf("ApplyEvaluation: %v", err)
	}
	if got := f.reload(t, position.ID); got.Status != types.PositionStatusVerified {
		t.Fatalf("expected verified, got %q", got.Status)
	}

	amendments, err := f.engine.ListByNode(ctx, "node-1")
	if err != nil {
		t.Fatalf("ListByNode: %v", err)
	}
	if len(amendments) != 1 {
		t.Fatalf("expected 1 amendment, got %d", len(amendments))
	}
	a := amendments[0]
	if a.Status != types.AmendmentStatusPending {
		t.Fatalf("expected pending, got %q", a.Status)
	}
	if a.FieldPath != "properties.boiling_point" {
		t.Fatalf("unexpected field path %q", a.FieldPath)
	}
	if a.PositionID == nil || *a.PositionID != position.ID {
		t.Fatalf("amendment not linked to position")
	}

	// The node itself is untouched until a reviewer approves.
	val, _, _ := f.store.GetField(ctx, "node-1", "properties.boiling_point")
	if val != 100.0 {
		t.Fatalf("auto-proposal must not mutate the node, got %v", val)
	}
}

func TestPipeline_RecomputeSkipsNodesWithoutIncludedPositions(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	inquiry := f.seedInquiry(t, "node-1")
	f.seedPosition(t, inquiry, func(p *types.Position) {
		p.Status = types.PositionStatusExcluded
		p.Evaluated = true
	})

	if err := f.pipeline.RecomputeNodeCredibility(ctx, "node-1"); err != nil {
		t.Fatalf("RecomputeNodeCredibility: %v", err)
	}
	credibility, err := f.store.GetCredibility(ctx, "node-1")
	if err != nil {
		t.Fatalf("GetCredibility: %v", err)
	}
	if !almostEqual(credibility, 0.5) {
		t.Fatalf("node score should be untouched, got %v", credibility)
	}
}
