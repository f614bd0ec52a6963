package neo4jdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/logger"
	pkgerrors "github.com/veridia/veridia-backend/internal/pkg/errors"
)

// NodeStore implements graph.NodeStore over Neo4j. A node's structured data
// lives in a JSON `data` property; credibility is a numeric `credibility`
// property. Field writes rewrite the whole document in one transaction, which
// keeps the per-path mutual exclusion owned by the amendment engine.
type NodeStore struct {
	client *Client
	log    *logger.Logger
}

func NewNodeStore(client *Client, baseLog *logger.Logger) *NodeStore {
	return &NodeStore{
		client: client,
		log:    baseLog.With("store", "Neo4jNodeStore"),
	}
}

var _ graph.NodeStore = (*NodeStore)(nil)

func (s *NodeStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.client.Database})
}

func (s *NodeStore) GetData(ctx context.Context, nodeID string) (map[string]any, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Node {id: $id}) RETURN n.data AS data`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
		}
		raw, _ := rec.Get("data")
		return raw, nil
	})
	if err != nil {
		return nil, err
	}

	data := map[string]any{}
	if str, ok := result.(string); ok && str != "" {
		if err := json.Unmarshal([]byte(str), &data); err != nil {
			return nil, fmt.Errorf("node %s: decode data document: %w", nodeID, err)
		}
	}
	return data, nil
}

func (s *NodeStore) GetField(ctx context.Context, nodeID, fieldPath string) (any, bool, error) {
	data, err := s.GetData(ctx, nodeID)
	if err != nil {
		return nil, false, err
	}
	return graph.GetField(data, fieldPath)
}

func (s *NodeStore) SetField(ctx context.Context, nodeID, fieldPath string, value any) error {
	data, err := s.GetData(ctx, nodeID)
	if err != nil {
		return err
	}
	if err := graph.SetField(data, fieldPath, value); err != nil {
		return err
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("node %s: encode data document: %w", nodeID, err)
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err = sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Node {id: $id}) SET n.data = $data RETURN n.id`,
			map[string]any{"id": nodeID, "data": string(encoded)})
		if err != nil {
			return nil, err
		}
		if _, err := res.Single(ctx); err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
		}
		return nil, nil
	})
	return err
}

func (s *NodeStore) GetCredibility(ctx context.Context, nodeID string) (float64, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Node {id: $id}) RETURN coalesce(n.credibility, 0.5) AS credibility`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
		}
		raw, _ := rec.Get("credibility")
		return raw, nil
	})
	if err != nil {
		return 0, err
	}

	switch v := result.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("node %s: unexpected credibility type %T", nodeID, result)
	}
}

func (s *NodeStore) SetCredibility(ctx context.Context, nodeID string, score float64) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Node {id: $id}) SET n.credibility = $score RETURN n.id`,
			map[string]any{"id": nodeID, "score": score})
		if err != nil {
			return nil, err
		}
		if _, err := res.Single(ctx); err != nil {
			return nil, fmt.Errorf("node %s: %w", nodeID, pkgerrors.ErrNotFound)
		}
		return nil, nil
	})
	return err
}
