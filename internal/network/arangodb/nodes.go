package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// CreateNode implements network.Repository.CreateNode.
func (r *Repository) CreateNode(ctx context.Context, n *models.Node) error {
	coll, err := r.collection(ctx, collNodes)
	if err != nil {
		return fmt.Errorf("failed to ensure nodes collection: %w", err)
	}
	meta, err := coll.CreateDocument(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to create node %q: %w", n.NodeID, err)
	}
	n.Key = meta.Key
	return nil
}

// CreateNodes bulk-inserts a network's imported node hierarchy.
func (r *Repository) CreateNodes(ctx context.Context, nodes []*models.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	coll, err := r.collection(ctx, collNodes)
	if err != nil {
		return fmt.Errorf("failed to ensure nodes collection: %w", err)
	}
	docs := make([]*models.Node, len(nodes))
	copy(docs, nodes)
	metas, _, err := coll.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to bulk-create nodes: %w", err)
	}
	for i, m := range metas {
		nodes[i].Key = m.Key
	}
	return nil
}

// GetNode implements network.Repository.GetNode.
func (r *Repository) GetNode(ctx context.Context, networkID, nodeID string) (*models.Node, error) {
	coll, err := r.collection(ctx, collNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure nodes collection: %w", err)
	}
	query := fmt.Sprintf("FOR n IN %s FILTER n.network_id == @networkId AND n.node_id == @nodeId LIMIT 1 RETURN n", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID, "nodeId": nodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, fmt.Errorf("node %q not found", nodeID)
	}
	var n models.Node
	if _, err := cursor.ReadDocument(ctx, &n); err != nil {
		return nil, fmt.Errorf("failed to read node: %w", err)
	}
	return &n, nil
}

// ListNodes implements network.Repository.ListNodes.
func (r *Repository) ListNodes(ctx context.Context, networkID string) ([]*models.Node, error) {
	coll, err := r.collection(ctx, collNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure nodes collection: %w", err)
	}
	query := fmt.Sprintf("FOR n IN %s FILTER n.network_id == @networkId SORT n.node_id ASC RETURN n", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer cursor.Close()

	var out []*models.Node
	for cursor.HasMore() {
		var n models.Node
		if _, err := cursor.ReadDocument(ctx, &n); err != nil {
			return nil, fmt.Errorf("failed to read node: %w", err)
		}
		out = append(out, &n)
	}
	return out, nil
}
