package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// CreateSensor implements network.Repository.CreateSensor.
func (r *Repository) CreateSensor(ctx context.Context, s *models.Sensor) error {
	coll, err := r.collection(ctx, collSensors)
	if err != nil {
		return fmt.Errorf("failed to ensure sensors collection: %w", err)
	}
	meta, err := coll.CreateDocument(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to create sensor %q: %w", s.SensorID, err)
	}
	s.Key = meta.Key
	return nil
}

// GetSensor implements network.Repository.GetSensor.
func (r *Repository) GetSensor(ctx context.Context, networkID, sensorID string) (*models.Sensor, error) {
	coll, err := r.collection(ctx, collSensors)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sensors collection: %w", err)
	}
	query := fmt.Sprintf("FOR s IN %s FILTER s.network_id == @networkId AND s.sensor_id == @sensorId LIMIT 1 RETURN s", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID, "sensorId": sensorID})
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor: %w", err)
	}
	defer cursor.Close()
	if !cursor.HasMore() {
		return nil, fmt.Errorf("sensor %q not found", sensorID)
	}
	var s models.Sensor
	if _, err := cursor.ReadDocument(ctx, &s); err != nil {
		return nil, fmt.Errorf("failed to read sensor: %w", err)
	}
	return &s, nil
}

// ListSensors implements network.Repository.ListSensors.
func (r *Repository) ListSensors(ctx context.Context, networkID string) ([]*models.Sensor, error) {
	return r.querySensors(ctx, networkID, false)
}

// ListActiveSensors implements network.Repository.ListActiveSensors.
func (r *Repository) ListActiveSensors(ctx context.Context, networkID string) ([]*models.Sensor, error) {
	return r.querySensors(ctx, networkID, true)
}

func (r *Repository) querySensors(ctx context.Context, networkID string, activeOnly bool) ([]*models.Sensor, error) {
	coll, err := r.collection(ctx, collSensors)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sensors collection: %w", err)
	}
	filter := "s.network_id == @networkId"
	if activeOnly {
		filter += " AND s.is_active == true"
	}
	query := fmt.Sprintf("FOR s IN %s FILTER %s SORT s.sensor_id ASC RETURN s", coll.Name(), filter)
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer cursor.Close()

	var out []*models.Sensor
	for cursor.HasMore() {
		var s models.Sensor
		if _, err := cursor.ReadDocument(ctx, &s); err != nil {
			return nil, fmt.Errorf("failed to read sensor: %w", err)
		}
		out = append(out, &s)
	}
	return out, nil
}
