package graph

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
)

// NodeStore is the narrow contract the pipeline holds against the external
// node/edge store: point reads and writes of a field at a dotted path inside a
// node's data document, and of the node's credibility score.
type NodeStore interface {
	GetData(ctx context.Context, nodeID string) (map[string]any, error)
	GetField(ctx context.Context, nodeID, fieldPath string) (any, bool, error)
	SetField(ctx context.Context, nodeID, fieldPath string, value any) error
	GetCredibility(ctx context.Context, nodeID string) (float64, error)
	SetCredibility(ctx context.Context, nodeID string, score float64) error
}

// MemoryNodeStore is an in-process NodeStore used by tests and local runs
// without a graph database.
type MemoryNodeStore struct {
	mu          sync.RWMutex
	data        map[string]map[string]any
	credibility map[string]float64
}

func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{
		data:        make(map[string]map[string]any),
		credibility: make(map[string]float64),
	}
}

func (s *MemoryNodeStore) SeedNode(nodeID string, data map[string]any, credibility float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[nodeID] = data
	s.credibility[nodeID] = credibility
}

func (s *MemoryNodeStore) GetData(ctx context.Context, nodeID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
	}
	return deepCopy(data), nil
}

func (s *MemoryNodeStore) GetField(ctx context.Context, nodeID, fieldPath string) (any, bool, error) {
	data, err := s.GetData(ctx, nodeID)
	if err != nil {
		return nil, false, err
	}
	return GetField(data, fieldPath)
}

func (s *MemoryNodeStore) SetField(ctx context.Context, nodeID, fieldPath string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
	}
	return SetField(data, fieldPath, value)
}

func (s *MemoryNodeStore) GetCredibility(ctx context.Context, nodeID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.credibility[nodeID]
	if !ok {
		return 0, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
	}
	return score, nil
}

func (s *MemoryNodeStore) SetCredibility(ctx context.Context, nodeID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[nodeID]; !ok {
		return fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
	}
	s.credibility[nodeID] = score
	return nil
}

func deepCopy(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]any); ok {
			out[k] = deepCopy(m)
			continue
		}
		out[k] = v
	}
	return out
}
