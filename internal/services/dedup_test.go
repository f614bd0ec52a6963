package services

import (
	"testing"

	"github.com/google/uuid"
)

func TestTitleSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Is the boiling point correct?", "Is the boiling point correct?", 1.0},
		{"case insensitive", "Boiling Point", "boiling point", 1.0},
		{"both empty", "", "", 1.0},
		{"disjoint", "abcd", "wxyz", 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := titleSimilarity(tc.a, tc.b); !almostEqual(got, tc.want) {
				t.Fatalf("titleSimilarity(%q,%q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}

	// One edit over ten characters.
	if got := titleSimilarity("abcdefghij", "abcdefghix"); !almostEqual(got, 0.9) {
		t.Fatalf("expected 0.9, got %v", got)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q,%q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTokenSetOverlap(t *testing.T) {
	if got := tokenSetOverlap("the melting point is wrong", "the melting point is wrong"); !almostEqual(got, 1.0) {
		t.Fatalf("identical descriptions should score 1, got %v", got)
	}
	if got := tokenSetOverlap("alpha beta", "gamma delta"); !almostEqual(got, 0.0) {
		t.Fatalf("disjoint descriptions should score 0, got %v", got)
	}
	// Punctuation and casing stripped: identical token sets.
	if got := tokenSetOverlap("Melting point!", "melting point"); !almostEqual(got, 1.0) {
		t.Fatalf("expected punctuation-insensitive match, got %v", got)
	}
	// {a,b,c} vs {b,c,d}: 2 shared of 4 total.
	if got := tokenSetOverlap("a b c", "b c d"); !almostEqual(got, 0.5) {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestValidJustification(t *testing.T) {
	short := "too short"
	if ValidJustification(short) {
		t.Fatalf("expected short justification to fail")
	}
	long := make([]byte, MinDuplicateJustification)
	for i := range long {
		long[i] = 'x'
	}
	if !ValidJustification(string(long)) {
		t.Fatalf("expected %d chars to pass", MinDuplicateJustification)
	}
	// Whitespace padding does not count toward the minimum.
	if ValidJustification("   " + short + "   ") {
		t.Fatalf("expected trimmed length check")
	}
}

func TestDuplicateMatch_AboveCutoff(t *testing.T) {
	var nilMatch *DuplicateMatch
	if nilMatch.AboveCutoff() {
		t.Fatalf("nil match must not block")
	}
	below := &DuplicateMatch{InquiryID: uuid.New(), Similarity: 0.84}
	if below.AboveCutoff() {
		t.Fatalf("0.84 must not block")
	}
	at := &DuplicateMatch{InquiryID: uuid.New(), Similarity: 0.85}
	if !at.AboveCutoff() {
		t.Fatalf("0.85 must block")
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 1}, []float32{1, 0, 1}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite floored at zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineSimilarity(tc.a, tc.b); !almostEqual(got, tc.want) {
				t.Fatalf("CosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDedupBlendWeightsSumToOne(t *testing.T) {
	sum := dedupEmbeddingWeight + dedupTitleWeight + dedupOverlapWeight
	if !almostEqual(sum, 1.0) {
		t.Fatalf("blend weights sum to %v, want 1.0", sum)
	}
}
