package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/graph"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

func newTestAmendmentEngine(t *testing.T) (AmendmentEngine, *graph.MemoryNodeStore) {
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
	engine := NewAmendmentEngine(db, log, repos.NewNodeAmendmentRepo(db, log), store, nopNotifier{})
	return engine, store
}

func TestAmendmentEngine_ProposeAndApprove(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestAmendmentEngine(t)

	amendment, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:      "node-1",
		FieldPath:   "properties.boiling_point",
		NewValue:    99.98,
		ProposedBy:  "editor-1",
		Explanation: "measured at standard pressure",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if amendment.Status != types.AmendmentStatusPending {
		t.Fatalf("expected pending, got %q", amendment.Status)
	}

	applied, err := engine.Approve(ctx, amendment.ID, "reviewer-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if applied.Status != types.AmendmentStatusApplied {
		t.Fatalf("expected applied, got %q", applied.Status)
	}

	val, ok, err := store.GetField(ctx, "node-1", "properties.boiling_point")
	if err != nil || !ok {
		t.Fatalf("GetField: err=%v ok=%v", err, ok)
	}
	if val != 99.98 {
		t.Fatalf("node field not updated: %v", val)
	}

	records, err := engine.History(ctx, "node-1", "properties.boiling_point")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(records))
	}
	if records[0].AppliedBy != "reviewer-1" {
		t.Fatalf("unexpected applied_by %q", records[0].AppliedBy)
	}
}

func TestAmendmentEngine_OnePendingPerPath(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestAmendmentEngine(t)

	first, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "title",
		NewValue:   "Dihydrogen monoxide",
		ProposedBy: "editor-1",
	})
	if err != nil {
		t.Fatalf("first Propose: %v", err)
	}

	_, err = engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "title",
		NewValue:   "H2O",
		ProposedBy: "editor-2",
	})
	var conflict *pkgerrors.PendingAmendmentError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected PendingAmendmentError, got %v", err)
	}
	if conflict.ExistingAmendmentID != first.ID {
		t.Fatalf("conflict points at %s, want %s", conflict.ExistingAmendmentID, first.ID)
	}

	// A different path on the same node is unaffected.
	if _, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "properties.boiling_point",
		NewValue:   99.98,
		ProposedBy: "editor-2",
	}); err != nil {
		t.Fatalf("different path should not conflict: %v", err)
	}
}

func TestAmendmentEngine_RejectRequiresReason(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestAmendmentEngine(t)

	amendment, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "title",
		NewValue:   "H2O",
		ProposedBy: "editor-1",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if _, err := engine.Reject(ctx, amendment.ID, "reviewer-1", ""); !pkgerrors.IsValidation(err) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}

	rejected, err := engine.Reject(ctx, amendment.ID, "reviewer-1", "insufficient evidence")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != types.AmendmentStatusRejected || rejected.RejectionReason != "insufficient evidence" {
		t.Fatalf("unexpected rejection state: %+v", rejected)
	}

	// The node is untouched.
	val, _, _ := store.GetField(ctx, "node-1", "title")
	if val != "Water" {
		t.Fatalf("rejected amendment mutated the node: %v", val)
	}

	// Rejection frees the path for a new proposal.
	if _, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "title",
		NewValue:   "H2O",
		ProposedBy: "editor-2",
	}); err != nil {
		t.Fatalf("path should be free after rejection: %v", err)
	}
}

func TestAmendmentEngine_InvalidPathRejectedAtProposal(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestAmendmentEngine(t)

	_, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "properties.melting_point",
		NewValue:   0.0,
		ProposedBy: "editor-1",
	})
	if !pkgerrors.IsValidation(err) {
		t.Fatalf("expected validation error for missing path, got %v", err)
	}
}

func TestAmendmentEngine_AutoProposalSupersededByPending(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestAmendmentEngine(t)

	if _, err := engine.Propose(ctx, ProposeAmendmentInput{
		NodeID:     "node-1",
		FieldPath:  "title",
		NewValue:   "Dihydrogen monoxide",
		ProposedBy: "editor-1",
	}); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	inquiry := &types.Inquiry{ID: uuid.New(), NodeID: "node-1"}
	position := &types.Position{
		ID:                uuid.New(),
		InquiryID:         inquiry.ID,
		CreatedBy:         "contributor-1",
		Argument:          "standard nomenclature",
		ProposedFieldPath: "title",
		ProposedValue:     mustJSON("H2O"),
	}

	auto, err := engine.ProposeFromPosition(ctx, position, inquiry)
	if err != nil {
		t.Fatalf("ProposeFromPosition: %v", err)
	}
	if auto == nil {
		t.Fatalf("expected a recorded amendment")
	}
	if auto.Status != types.AmendmentStatusRejected {
		t.Fatalf("expected auto-rejected, got %q", auto.Status)
	}
	if auto.RejectionReason != RejectionSuperseded {
		t.Fatalf("unexpected reason %q", auto.RejectionReason)
	}
	if auto.RejectedBy != "system" {
		t.Fatalf("unexpected rejected_by %q", auto.RejectedBy)
	}
}

func TestAmendmentEngine_ProposeFromPositionWithoutIntent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestAmendmentEngine(t)

	inquiry := &types.Inquiry{ID: uuid.New(), NodeID: "node-1"}
	position := &types.Position{ID: uuid.New(), InquiryID: inquiry.ID, CreatedBy: "contributor-1"}
	amendment, err := engine.ProposeFromPosition(ctx, position, inquiry)
	if err != nil {
		t.Fatalf("ProposeFromPosition: %v", err)
	}
	if amendment != nil {
		t.Fatalf("no intent should create no amendment, got %+v", amendment)
	}
}

func TestAmendmentEngine_ConcurrentProposalsSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log := testLogger(t)
	store := graph.NewMemoryNodeStore()
	store.SeedNode("node-1", map[string]any{
		"title": "Water",
		"properties": map[string]any{
			"boiling_point": 100.0,
		},
	}, 0.5)
	repo := repos.NewNodeAmendmentRepo(db, log)
	engine := NewAmendmentEngine(db, log, repo, store, nopNotifier{})

	const proposers = 8
	var wg sync.WaitGroup
	errs := make([]error, proposers)
	for i := 0; i < proposers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Propose(ctx, ProposeAmendmentInput{
				NodeID:     "node-1",
				FieldPath:  "properties.boiling_point",
				NewValue:   99.0 + float64(i),
				ProposedBy: fmt.Sprintf("editor-%d", i),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *pkgerrors.PendingAmendmentError
		if !errors.As(err, &conflict) {
			t.Fatalf("proposer %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning proposal, got %d", winners)
	}

	pending, err := repo.GetPendingByNodePath(ctx, nil, "node-1", "properties.boiling_point")
	if err != nil {
		t.Fatalf("GetPendingByNodePath: %v", err)
	}
	if pending == nil {
		t.Fatalf("expected one pending amendment")
	}
	all, err := repo.ListByNode(ctx, nil, "node-1")
	if err != nil {
		t.Fatalf("ListByNode: %v", err)
	}
	pendingCount := 0
	for _, a := range all {
		if a.Status == types.AmendmentStatusPending {
			pendingCount++
		}
	}
	if pendingCount != 1 {
		t.Fatalf("expected 1 pending amendment, got %d", pendingCount)
	}
}

func TestAmendmentEngine_ConcurrentAutoProposalsSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log := testLogger(t)
	store := graph.NewMemoryNodeStore()
	store.SeedNode("node-1", map[string]any{"title": "Water"}, 0.5)
	repo := repos.NewNodeAmendmentRepo(db, log)
	engine := NewAmendmentEngine(db, log, repo, store, nopNotifier{})

	inquiry := &types.Inquiry{ID: uuid.New(), NodeID: "node-1"}
	const proposers = 4
	var wg sync.WaitGroup
	results := make([]*types.NodeAmendment, proposers)
	errs := make([]error, proposers)
	for i := 0; i < proposers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			position := &types.Position{
				ID:                uuid.New(),
				InquiryID:         inquiry.ID,
				CreatedBy:         fmt.Sprintf("contributor-%d", i),
				Argument:          "standard nomenclature",
				ProposedFieldPath: "title",
				ProposedValue:     mustJSON("H2O"),
			}
			results[i], errs[i] = engine.ProposeFromPosition(ctx, position, inquiry)
		}(i)
	}
	wg.Wait()

	pendingCount, rejectedCount := 0, 0
	for i := 0; i < proposers; i++ {
		if errs[i] != nil {
			t.Fatalf("proposer %d: %v", i, errs[i])
		}
		switch results[i].Status {
		case types.AmendmentStatusPending:
			pendingCount++
		case types.AmendmentStatusRejected:
			rejectedCount++
			if results[i].RejectionReason != RejectionSuperseded {
				t.Fatalf("proposer %d: unexpected reason %q", i, results[i].RejectionReason)
			}
		default:
			t.Fatalf("proposer %d: unexpected status %q", i, results[i].Status)
		}
	}
	if pendingCount != 1 || rejectedCount != proposers-1 {
		t.Fatalf("expected 1 pending and %d superseded, got %d/%d", proposers-1, pendingCount, rejectedCount)
	}
}
