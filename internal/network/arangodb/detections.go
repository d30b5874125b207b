package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// CreateLeakDetection implements network.Repository.CreateLeakDetection.
func (r *Repository) CreateLeakDetection(ctx context.Context, d *models.LeakDetection) error {
	coll, err := r.collection(ctx, collLeakDetections)
	if err != nil {
		return fmt.Errorf("failed to ensure leak_detections collection: %w", err)
	}
	meta, err := coll.CreateDocument(ctx, d)
	if err != nil {
		return fmt.Errorf("failed to create leak detection: %w", err)
	}
	d.Key = meta.Key
	return nil
}

// GetLeakDetection implements network.Repository.GetLeakDetection.
func (r *Repository) GetLeakDetection(ctx context.Context, networkID, detectionID string) (*models.LeakDetection, error) {
	coll, err := r.collection(ctx, collLeakDetections)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure leak_detections collection: %w", err)
	}
	var d models.LeakDetection
	if _, err := coll.ReadDocument(ctx, detectionID, &d); err != nil {
		return nil, fmt.Errorf("failed to read leak detection %q: %w", detectionID, err)
	}
	return &d, nil
}

// UpdateLeakDetection implements network.Repository.UpdateLeakDetection.
func (r *Repository) UpdateLeakDetection(ctx context.Context, d *models.LeakDetection) error {
	coll, err := r.collection(ctx, collLeakDetections)
	if err != nil {
		return fmt.Errorf("failed to ensure leak_detections collection: %w", err)
	}
	if _, err := coll.UpdateDocument(ctx, d.Key, d); err != nil {
		return fmt.Errorf("failed to update leak detection: %w", err)
	}
	return nil
}

// ListLeakDetections implements network.Repository.ListLeakDetections.
func (r *Repository) ListLeakDetections(ctx context.Context, networkID string) ([]*models.LeakDetection, error) {
	coll, err := r.collection(ctx, collLeakDetections)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure leak_detections collection: %w", err)
	}
	query := fmt.Sprintf("FOR d IN %s FILTER d.network_id == @networkId SORT d.detected_at DESC RETURN d", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query leak detections: %w", err)
	}
	defer cursor.Close()

	var out []*models.LeakDetection
	for cursor.HasMore() {
		var d models.LeakDetection
		if _, err := cursor.ReadDocument(ctx, &d); err != nil {
			return nil, fmt.Errorf("failed to read leak detection: %w", err)
		}
		out = append(out, &d)
	}
	return out, nil
}
