package arangodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aosanya/waterguard/internal/models"
)

// CreateReadings bulk-inserts a batch of readings, per spec §6's batch
// ingest endpoint.
func (r *Repository) CreateReadings(ctx context.Context, readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	coll, err := r.collection(ctx, collReadings)
	if err != nil {
		return fmt.Errorf("failed to ensure readings collection: %w", err)
	}
	docs := make([]*models.Reading, len(readings))
	copy(docs, readings)
	metas, _, err := coll.CreateDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to bulk-create readings: %w", err)
	}
	for i, m := range metas {
		readings[i].Key = m.Key
	}
	return nil
}

// ReadingsInWindow implements network.Repository.ReadingsInWindow, matching
// the inclusive [from, to] bound spec §4.E's aggregation rule uses.
func (r *Repository) ReadingsInWindow(ctx context.Context, networkID, sensorID string, from, to time.Time) ([]*models.Reading, error) {
	coll, err := r.collection(ctx, collReadings)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure readings collection: %w", err)
	}
	query := fmt.Sprintf(`FOR r IN %s
		FILTER r.network_id == @networkId AND r.sensor_id == @sensorId
		FILTER r.timestamp >= @from AND r.timestamp <= @to
		RETURN r`, coll.Name())
	bindVars := map[string]interface{}{
		"networkId": networkID,
		"sensorId":  sensorID,
		"from":      from,
		"to":        to,
	}
	cursor, err := r.db.Query(ctx, query, bindVars)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer cursor.Close()

	var out []*models.Reading
	for cursor.HasMore() {
		var rd models.Reading
		if _, err := cursor.ReadDocument(ctx, &rd); err != nil {
			return nil, fmt.Errorf("failed to read reading: %w", err)
		}
		out = append(out, &rd)
	}
	return out, nil
}
