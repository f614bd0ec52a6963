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

func seedInquiry(t *testing.T, db *gorm.DB, inquiry *types.Inquiry) {
	t.Helper()
	if inquiry.CreatedAt.IsZero() {
		inquiry.CreatedAt = time.Now()
		inquiry.UpdatedAt = inquiry.CreatedAt
	}
	if err := db.Create(inquiry).Error; err != nil {
		t.Fatalf("seed inquiry: %v", err)
	}
}

func seedRelatedNode(t *testing.T, db *gorm.DB, inquiryID uuid.UUID, nodeID string) {
	t.Helper()
	if err := db.Create(&types.InquiryRelatedNode{
		ID:        uuid.New(),
		InquiryID: inquiryID,
		NodeID:    nodeID,
		CreatedAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("seed related node: %v", err)
	}
}

func newTestConfidenceService(t *testing.T, db *gorm.DB, rawScore float64, store graph.NodeStore) ConfidenceService {
	t.Helper()
	log := testLogger(t)
	return NewConfidenceService(
		db,
		log,
		repos.NewInquiryRepo(db, log),
		repos.NewPositionRepo(db, log),
		repos.NewConfidenceAuditRepo(db, log),
		&stubEvaluator{confidence: rawScore},
		store,
		nopNotifier{},
	)
}

func TestConfidenceService_WeakestNodeCeiling(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store := graph.NewMemoryNodeStore()
	store.SeedNode("node-a", map[string]any{"title": "a"}, 0.60)
	store.SeedNode("node-b", map[string]any{"title": "b"}, 0.82)
	store.SeedNode("node-c", map[string]any{"title": "c"}, 0.91)

	inquiry := &types.Inquiry{
		ID:          uuid.New(),
		NodeID:      "node-a",
		Type:        types.InquiryTypeFactualAccuracy,
		Title:       "Is the synthesis route correct?",
		Description: "The described route conflicts with two later papers.",
		Status:      types.InquiryStatusActive,
		CreatedBy:   "contributor-1",
	}
	seedInquiry(t, db, inquiry)
	seedRelatedNode(t, db, inquiry.ID, "node-a")
	seedRelatedNode(t, db, inquiry.ID, "node-b")
	seedRelatedNode(t, db, inquiry.ID, "node-c")

	svc := newTestConfidenceService(t, db, 0.95, store)
	result, err := svc.Evaluate(ctx, inquiry.ID, "reviewer-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !almostEqual(result.RawScore, 0.95) {
		t.Fatalf("raw score %v, want 0.95", result.RawScore)
	}
	if !almostEqual(result.StoredScore, 0.60) {
		t.Fatalf("stored score %v, want ceiling 0.60", result.StoredScore)
	}
	if result.LimitingNode != "node-a" {
		t.Fatalf("limiting node %q, want node-a", result.LimitingNode)
	}

	// The clamped value is persisted on the inquiry.
	var reloaded types.Inquiry
	if err := db.First(&reloaded, "id = ?", inquiry.ID).Error; err != nil {
		t.Fatalf("reload inquiry: %v", err)
	}
	if reloaded.Confidence == nil || !almostEqual(*reloaded.Confidence, 0.60) {
		t.Fatalf("persisted confidence %v, want 0.60", reloaded.Confidence)
	}

	// The audit row keeps both scores and the limiting node.
	history, err := svc.History(ctx, inquiry.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(history))
	}
	audit := history[0]
	if !almostEqual(audit.RawScore, 0.95) || !almostEqual(audit.StoredScore, 0.60) || audit.LimitingNode != "node-a" {
		t.Fatalf("unexpected audit row: %+v", audit)
	}
}

func TestConfidenceService_NoClampBelowCeiling(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store := graph.NewMemoryNodeStore()
	store.SeedNode("node-a", map[string]any{"title": "a"}, 0.80)

	inquiry := &types.Inquiry{
		ID:          uuid.New(),
		NodeID:      "node-a",
		Type:        types.InquiryTypeFactualAccuracy,
		Title:       "t",
		Description: "d",
		Status:      types.InquiryStatusActive,
		CreatedBy:   "contributor-1",
	}
	seedInquiry(t, db, inquiry)
	seedRelatedNode(t, db, inquiry.ID, "node-a")

	svc := newTestConfidenceService(t, db, 0.55, store)
	result, err := svc.Evaluate(ctx, inquiry.ID, "reviewer-1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !almostEqual(result.StoredScore, 0.55) {
		t.Fatalf("stored score %v, want raw 0.55", result.StoredScore)
	}
	if result.LimitingNode != "" {
		t.Fatalf("expected no limiting node, got %q", result.LimitingNode)
	}
}

func TestConfidenceService_InactiveInquiryRejected(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := graph.NewMemoryNodeStore()

	inquiry := &types.Inquiry{
		ID:          uuid.New(),
		NodeID:      "node-a",
		Type:        types.InquiryTypeFactualAccuracy,
		Title:       "t",
		Description: "d",
		Status:      types.InquiryStatusClosed,
		CreatedBy:   "contributor-1",
	}
	seedInquiry(t, db, inquiry)

	svc := newTestConfidenceService(t, db, 0.9, store)
	if _, err := svc.Evaluate(ctx, inquiry.ID, "reviewer-1"); err == nil {
		t.Fatalf("expected error for closed inquiry")
	}
}
