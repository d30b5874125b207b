package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// CreateNetwork implements network.Repository.CreateNetwork.
func (r *Repository) CreateNetwork(ctx context.Context, n *models.Network) error {
	coll, err := r.collection(ctx, collNetworks)
	if err != nil {
		return fmt.Errorf("failed to ensure networks collection: %w", err)
	}
	meta, err := coll.CreateDocument(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to create network: %w", err)
	}
	n.Key = meta.Key
	return nil
}

// GetNetwork implements network.Repository.GetNetwork.
func (r *Repository) GetNetwork(ctx context.Context, networkID string) (*models.Network, error) {
	coll, err := r.collection(ctx, collNetworks)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure networks collection: %w", err)
	}
	var n models.Network
	if _, err := coll.ReadDocument(ctx, networkID, &n); err != nil {
		return nil, fmt.Errorf("failed to read network %q: %w", networkID, err)
	}
	return &n, nil
}

// ListNetworks implements network.Repository.ListNetworks.
func (r *Repository) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	coll, err := r.collection(ctx, collNetworks)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure networks collection: %w", err)
	}
	query := fmt.Sprintf("FOR n IN %s SORT n.created_at DESC RETURN n", coll.Name())
	cursor, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query networks: %w", err)
	}
	defer cursor.Close()

	var out []*models.Network
	for cursor.HasMore() {
		var n models.Network
		if _, err := cursor.ReadDocument(ctx, &n); err != nil {
			return nil, fmt.Errorf("failed to read network: %w", err)
		}
		out = append(out, &n)
	}
	return out, nil
}
