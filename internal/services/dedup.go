package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/logger"
)

const (
	// Blend weights for the duplicate score.
	dedupEmbeddingWeight = 0.60
	dedupTitleWeight     = 0.25
	dedupOverlapWeight   = 0.15

	// DuplicateSimilarityCutoff blocks creation without a justification.
	DuplicateSimilarityCutoff = 0.85
	// MinDuplicateJustification is a length check only; content is stored for
	// audit, never evaluated.
	MinDuplicateJustification = 100
)

// DuplicateMatch reports the strongest existing inquiry against a candidate.
type DuplicateMatch struct {
	InquiryID  uuid.UUID
	Similarity float64
}

// Deduplicator scores a candidate inquiry against every active inquiry on the
// same node: 60% embedding cosine similarity, 25% normalized title edit
// distance, 15% Jaccard token overlap of descriptions.
type Deduplicator interface {
	// FindDuplicate returns the embedding (for later persistence), the best
	// match above zero, and whether the cutoff was reached. A nil embedding
	// with no error means the similarity service was unavailable and dedup
	// degraded to "no duplicate found".
	FindDuplicate(ctx context.Context, title, description, nodeID string) ([]float32, *DuplicateMatch, error)
}

type deduplicator struct {
	log   *logger.Logger
	index SimilarityIndex
}

func NewDeduplicator(log *logger.Logger, index SimilarityIndex) Deduplicator {
	return &deduplicator{
		log:   log.With("service", "Deduplicator"),
		index: index,
	}
}

func (d *deduplicator) FindDuplicate(ctx context.Context, title, description, nodeID string) ([]float32, *DuplicateMatch, error) {
	text := strings.TrimSpace(title + "\n\n" + description)

	embedding, err := d.index.Embed(ctx, text)
	if err != nil {
		// Dedup is a quality safeguard, not a correctness-critical path:
		// degrade to "no duplicate found" and let creation proceed.
		d.log.Warn("embedding unavailable, skipping duplicate detection", "node_id", nodeID, "error", err)
		return nil, nil, nil
	}

	neighbors, err := d.index.NearestForNode(ctx, embedding, nodeID, uuid.Nil)
	if err != nil {
		d.log.Warn("similarity lookup failed, skipping duplicate detection", "node_id", nodeID, "error", err)
		return embedding, nil, nil
	}

	var best *DuplicateMatch
	for _, n := range neighbors {
		blended := dedupEmbeddingWeight*n.Similarity +
			dedupTitleWeight*titleSimilarity(title, n.Inquiry.Title) +
			dedupOverlapWeight*tokenSetOverlap(description, n.Inquiry.Description)
		if best == nil || blended > best.Similarity {
			best = &DuplicateMatch{InquiryID: n.Inquiry.ID, Similarity: blended}
		}
	}
	return embedding, best, nil
}

// ValidJustification enforces only length, per the audit contract.
func ValidJustification(justification string) bool {
	return len(strings.TrimSpace(justification)) >= MinDuplicateJustification
}

// AboveCutoff reports whether a match reaches the blocking cutoff.
func (m *DuplicateMatch) AboveCutoff() bool {
	return m != nil && m.Similarity >= DuplicateSimilarityCutoff
}

func titleSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// tokenSetOverlap is the Jaccard index over lowercased word sets.
func tokenSetOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]{}")
		if tok != "" {
			out[tok] = true
		}
	}
	return out
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
