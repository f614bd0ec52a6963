package services

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/veridia/veridia-backend/internal/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCommunityVoteScore_Bounds(t *testing.T) {
	cases := []struct {
		name     string
		up, down int
		want     float64
	}{
		{"no votes", 0, 0, 0.5},
		{"all upvotes", 10, 0, 1.0},
		{"all downvotes", 0, 10, 0.0},
		{"balanced", 5, 5, 0.5},
		{"single upvote", 1, 0, 1.0},
		{"majority up", 12, 2, (10.0/14.0 + 1) / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CommunityVoteScore(tc.up, tc.down)
			if !almostEqual(got, tc.want) {
				t.Fatalf("CommunityVoteScore(%d,%d) = %v, want %v", tc.up, tc.down, got, tc.want)
			}
		})
	}
}

func TestPositionCredibility_FormulaWeights(t *testing.T) {
	// evidenceQuality 0.9 at weight 1.0, sourceCredibility 0.95,
	// coherence 0.85, 12 up / 2 down.
	in := CredibilityInputs{
		EvidenceQuality:   0.9,
		Coherence:         0.85,
		EvidenceWeight:    1.0,
		SourceCredibility: 0.95,
		Upvotes:           12,
		Downvotes:         2,
	}
	want := 0.50*0.9*1.0 + 0.25*0.95 + 0.20*0.85 + 0.05*CommunityVoteScore(12, 2)
	got := PositionCredibility(in)
	if !almostEqual(got, want) {
		t.Fatalf("PositionCredibility = %v, want %v", got, want)
	}
	// This score should clear a 0.85 auto-amend cut-point.
	if got < 0.85 {
		t.Fatalf("expected score >= 0.85, got %v", got)
	}
}

func TestPositionCredibility_Clamped(t *testing.T) {
	in := CredibilityInputs{
		EvidenceQuality:   1.0,
		Coherence:         1.0,
		EvidenceWeight:    1.0,
		SourceCredibility: 1.0,
		Upvotes:           100,
	}
	if got := PositionCredibility(in); got > 1.0 {
		t.Fatalf("expected clamp at 1.0, got %v", got)
	}
	if got := PositionCredibility(CredibilityInputs{}); got < 0 {
		t.Fatalf("expected clamp at 0, got %v", got)
	}
}

func TestPositionCredibility_Idempotent(t *testing.T) {
	in := CredibilityInputs{
		EvidenceQuality:   0.7,
		Coherence:         0.6,
		EvidenceWeight:    0.75,
		SourceCredibility: 0.8,
		Upvotes:           3,
		Downvotes:         1,
	}
	first := PositionCredibility(in)
	for i := 0; i < 5; i++ {
		if got := PositionCredibility(in); got != first {
			t.Fatalf("recompute %d changed score: %v != %v", i, got, first)
		}
	}
}

func TestPositionCredibility_VoteTermBounded(t *testing.T) {
	base := CredibilityInputs{
		EvidenceQuality:   0.5,
		Coherence:         0.5,
		EvidenceWeight:    0.5,
		SourceCredibility: 0.5,
	}
	worst := base
	worst.Downvotes = 1000
	best := base
	best.Upvotes = 1000
	spread := PositionCredibility(best) - PositionCredibility(worst)
	if !almostEqual(spread, 0.05) {
		t.Fatalf("vote swing moved score by %v, want exactly 0.05", spread)
	}
}

func linksJSON(t *testing.T, links ...string) datatypes.JSON {
	t.Helper()
	return mustJSON(links)
}

func TestSourceCredibilityScore_CorroborationCapped(t *testing.T) {
	inquiryID := uuid.New()
	position := &types.Position{
		ID:            uuid.New(),
		InquiryID:     inquiryID,
		Status:        types.PositionStatusCredible,
		EvidenceLinks: linksJSON(t, "https://www.nature.com/articles/a1"),
	}
	makeSibling := func(status types.PositionStatus, link string) *types.Position {
		return &types.Position{
			ID:            uuid.New(),
			InquiryID:     inquiryID,
			Status:        status,
			EvidenceLinks: linksJSON(t, link),
		}
	}

	t.Run("no siblings", func(t *testing.T) {
		got := SourceCredibilityScore(0.8, position, nil)
		if !almostEqual(got, 0.8) {
			t.Fatalf("expected bare weight 0.8, got %v", got)
		}
	})

	t.Run("one corroborating sibling", func(t *testing.T) {
		siblings := []*types.Position{
			makeSibling(types.PositionStatusVerified, "https://nature.com/articles/a2"),
		}
		got := SourceCredibilityScore(0.8, position, siblings)
		if !almostEqual(got, 0.85) {
			t.Fatalf("expected 0.85, got %v", got)
		}
	})

	t.Run("bonus capped at 0.10", func(t *testing.T) {
		siblings := []*types.Position{
			makeSibling(types.PositionStatusVerified, "https://nature.com/articles/a2"),
			makeSibling(types.PositionStatusCredible, "https://nature.com/articles/a3"),
			makeSibling(types.PositionStatusVerified, "https://nature.com/articles/a4"),
		}
		got := SourceCredibilityScore(0.8, position, siblings)
		if !almostEqual(got, 0.9) {
			t.Fatalf("expected cap at 0.9, got %v", got)
		}
	})

	t.Run("excluded siblings do not corroborate", func(t *testing.T) {
		siblings := []*types.Position{
			makeSibling(types.PositionStatusExcluded, "https://nature.com/articles/a2"),
			makeSibling(types.PositionStatusWeak, "https://nature.com/articles/a3"),
		}
		got := SourceCredibilityScore(0.8, position, siblings)
		if !almostEqual(got, 0.8) {
			t.Fatalf("expected no bonus, got %v", got)
		}
	})

	t.Run("never exceeds one", func(t *testing.T) {
		siblings := []*types.Position{
			makeSibling(types.PositionStatusVerified, "https://nature.com/articles/a2"),
		}
		got := SourceCredibilityScore(0.98, position, siblings)
		if got > 1.0 {
			t.Fatalf("expected <= 1.0, got %v", got)
		}
	})

	t.Run("subdomain mirrors corroborate", func(t *testing.T) {
		siblings := []*types.Position{
			makeSibling(types.PositionStatusVerified, "https://amp.nature.com/articles/a2"),
		}
		got := SourceCredibilityScore(0.8, position, siblings)
		if !almostEqual(got, 0.85) {
			t.Fatalf("expected 0.85 for a subdomain mirror, got %v", got)
		}
	})
}

func TestRegistrableDomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"amp.example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"bbc.co.uk", "bbc.co.uk"},
		{"news.bbc.co.uk", "bbc.co.uk"},
		{"example.com.au", "example.com.au"},
		{"localhost", "localhost"},
		{"192.0.2.10", "192.0.2.10"},
		{"example.com.", "example.com"},
	}
	for _, tc := range cases {
		if got := registrableDomain(tc.host); got != tc.want {
			t.Fatalf("registrableDomain(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestNodeCredibility_StanceWeighting(t *testing.T) {
	position := func(stance types.Stance, status types.PositionStatus, score float64) *types.Position {
		return &types.Position{ID: uuid.New(), Stance: stance, Status: status, CredibilityScore: score}
	}

	t.Run("no included positions", func(t *testing.T) {
		_, ok := NodeCredibility([]*types.Position{
			position(types.StanceSupporting, types.PositionStatusExcluded, 0.9),
			position(types.StanceSupporting, types.PositionStatusPendingEvaluation, 0.9),
		})
		if ok {
			t.Fatalf("expected ok=false with nothing included")
		}
	})

	t.Run("single supporting", func(t *testing.T) {
		got, ok := NodeCredibility([]*types.Position{
			position(types.StanceSupporting, types.PositionStatusVerified, 0.8),
		})
		if !ok {
			t.Fatalf("expected ok=true")
		}
		if !almostEqual(got, (0.8+1)/2) {
			t.Fatalf("got %v, want %v", got, (0.8+1)/2)
		}
	})

	t.Run("opposing pulls down", func(t *testing.T) {
		got, ok := NodeCredibility([]*types.Position{
			position(types.StanceSupporting, types.PositionStatusVerified, 0.8),
			position(types.StanceOpposing, types.PositionStatusCredible, 0.6),
		})
		if !ok {
			t.Fatalf("expected ok=true")
		}
		want := ((1.0*0.8 + -1.0*0.6) / 2.0 + 1) / 2
		if !almostEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("neutral counts half", func(t *testing.T) {
		got, ok := NodeCredibility([]*types.Position{
			position(types.StanceNeutral, types.PositionStatusCredible, 0.6),
		})
		if !ok {
			t.Fatalf("expected ok=true")
		}
		want := (0.5*0.6 + 1) / 2
		if !almostEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
}

func TestSiblingsOf_FiltersByInquiry(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	positions := []*types.Position{
		{ID: uuid.New(), InquiryID: a},
		{ID: uuid.New(), InquiryID: b},
		{ID: uuid.New(), InquiryID: a},
		nil,
	}
	got := SiblingsOf(positions, a)
	if len(got) != 2 {
		t.Fatalf("expected 2 siblings, got %d", len(got))
	}
	for _, p := range got {
		if p.InquiryID != a {
			t.Fatalf("unexpected inquiry id %s", p.InquiryID)
		}
	}
}
