package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// CreatePartition implements network.Repository.CreatePartition.
func (r *Repository) CreatePartition(ctx context.Context, p *models.Partition) error {
	coll, err := r.collection(ctx, collPartitions)
	if err != nil {
		return fmt.Errorf("failed to ensure partitions collection: %w", err)
	}
	meta, err := coll.CreateDocument(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to create partition %q: %w", p.PartitionID, err)
	}
	p.Key = meta.Key
	return nil
}

// ListPartitions implements network.Repository.ListPartitions.
func (r *Repository) ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error) {
	coll, err := r.collection(ctx, collPartitions)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure partitions collection: %w", err)
	}
	query := fmt.Sprintf("FOR p IN %s FILTER p.network_id == @networkId RETURN p", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query partitions: %w", err)
	}
	defer cursor.Close()

	var out []*models.Partition
	for cursor.HasMore() {
		var p models.Partition
		if _, err := cursor.ReadDocument(ctx, &p); err != nil {
			return nil, fmt.Errorf("failed to read partition: %w", err)
		}
		out = append(out, &p)
	}
	return out, nil
}

// GetPartition implements network.Repository.GetPartition.
func (r *Repository) GetPartition(ctx context.Context, networkID, partitionID string) (*models.Partition, error) {
	coll, err := r.collection(ctx, collPartitions)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure partitions collection: %w", err)
	}
	query := fmt.Sprintf("FOR p IN %s FILTER p.network_id == @networkId AND p.partition_id == @partitionId LIMIT 1 RETURN p", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID, "partitionId": partitionID})
	if err != nil {
		return nil, fmt.Errorf("failed to query partition: %w", err)
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, fmt.Errorf("partition %q not found", partitionID)
	}
	var p models.Partition
	if _, err := cursor.ReadDocument(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to read partition: %w", err)
	}
	return &p, nil
}
