package services

import (
	"context"
	"encoding/json"
	"math"

	"github.com/google/uuid"

	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/types"
)

// Neighbor is one nearest-neighbor candidate scoped to a node.
type Neighbor struct {
	Inquiry    *types.Inquiry
	Similarity float64
}

// SimilarityIndex produces embeddings and answers nearest-neighbor lookups
// over the active inquiries of a single node. The embedding store is the
// inquiry table itself (jsonb column), so the index never drifts from the
// persisted inquiries.
type SimilarityIndex interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	NearestForNode(ctx context.Context, vector []float32, nodeID string, exclude uuid.UUID) ([]Neighbor, error)
}

type similarityIndex struct {
	log         *logger.Logger
	client      OpenAIClient
	inquiryRepo repos.InquiryRepo
}

func NewSimilarityIndex(log *logger.Logger, client OpenAIClient, inquiryRepo repos.InquiryRepo) SimilarityIndex {
	return &similarityIndex{
		log:         log.With("service", "SimilarityIndex"),
		client:      client,
		inquiryRepo: inquiryRepo,
	}
}

func (s *similarityIndex) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, pkgerrors.NewTransient("embed", err)
	}
	if len(vecs) == 0 {
		return nil, pkgerrors.NewTransient("embed", errEmptyEmbedding)
	}
	return vecs[0], nil
}

func (s *similarityIndex) NearestForNode(ctx context.Context, vector []float32, nodeID string, exclude uuid.UUID) ([]Neighbor, error) {
	inquiries, err := s.inquiryRepo.GetActiveByNodeID(ctx, nil, nodeID)
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, 0, len(inquiries))
	for _, inq := range inquiries {
		if inq == nil || inq.ID == exclude {
			continue
		}
		candidate := decodeEmbedding(inq.Embedding)
		if len(candidate) == 0 {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Inquiry:    inq,
			Similarity: CosineSimilarity(vector, candidate),
		})
	}
	return neighbors, nil
}

var errEmptyEmbedding = pkgerrors.ErrInvalidArgument

func decodeEmbedding(raw []byte) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil
	}
	return vec
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// floored at 0. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos < 0 {
		return 0
	}
	return cos
}
