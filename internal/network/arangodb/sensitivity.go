package arangodb

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
)

// ClearSensitivityEntries removes every entry for networkID, used by a
// forced matrix rebuild.
func (r *Repository) ClearSensitivityEntries(ctx context.Context, networkID string) error {
	coll, err := r.collection(ctx, collSensitivityEntries)
	if err != nil {
		return fmt.Errorf("failed to ensure sensitivity_entries collection: %w", err)
	}
	query := fmt.Sprintf("FOR e IN %s FILTER e.network_id == @networkId REMOVE e IN %s", coll.Name(), coll.Name())
	if _, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID}); err != nil {
		return fmt.Errorf("failed to clear sensitivity entries: %w", err)
	}
	return nil
}

// UpsertSensitivityEntries persists a batch keyed by
// (network_id, leak_node_id, sensor_id), per spec §4.D step 6.
func (r *Repository) UpsertSensitivityEntries(ctx context.Context, entries []*models.SensitivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	coll, err := r.collection(ctx, collSensitivityEntries)
	if err != nil {
		return fmt.Errorf("failed to ensure sensitivity_entries collection: %w", err)
	}
	query := fmt.Sprintf(`FOR e IN @entries
		UPSERT { network_id: e.network_id, leak_node_id: e.leak_node_id, sensor_id: e.sensor_id }
		INSERT e
		UPDATE e IN %s`, coll.Name())
	if _, err := r.db.Query(ctx, query, map[string]interface{}{"entries": entries}); err != nil {
		return fmt.Errorf("failed to upsert sensitivity entries: %w", err)
	}
	return nil
}

// CountSensitivityEntries implements network.Repository.CountSensitivityEntries.
func (r *Repository) CountSensitivityEntries(ctx context.Context, networkID string) (int, error) {
	coll, err := r.collection(ctx, collSensitivityEntries)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure sensitivity_entries collection: %w", err)
	}
	query := fmt.Sprintf("FOR e IN %s FILTER e.network_id == @networkId COLLECT WITH COUNT INTO length RETURN length", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return 0, fmt.Errorf("failed to count sensitivity entries: %w", err)
	}
	defer cursor.Close()
	var count int
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &count); err != nil {
			return 0, fmt.Errorf("failed to read count: %w", err)
		}
	}
	return count, nil
}

// SensitivityRow returns sensor_id -> sensitivity_value for one leak node,
// used by the localization engine's predicted-change computation (§4.F).
func (r *Repository) SensitivityRow(ctx context.Context, networkID, leakNodeID string) (map[string]float64, error) {
	coll, err := r.collection(ctx, collSensitivityEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sensitivity_entries collection: %w", err)
	}
	query := fmt.Sprintf("FOR e IN %s FILTER e.network_id == @networkId AND e.leak_node_id == @leakNodeId RETURN e", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID, "leakNodeId": leakNodeID})
	if err != nil {
		return nil, fmt.Errorf("failed to query sensitivity row: %w", err)
	}
	defer cursor.Close()

	row := make(map[string]float64)
	for cursor.HasMore() {
		var e models.SensitivityEntry
		if _, err := cursor.ReadDocument(ctx, &e); err != nil {
			return nil, fmt.Errorf("failed to read sensitivity entry: %w", err)
		}
		row[e.SensorID] = e.SensitivityValue
	}
	return row, nil
}

// SensitivityCandidates returns every distinct leak_node_id with at least
// one entry in networkID, per spec §4.F step 3's candidate set.
func (r *Repository) SensitivityCandidates(ctx context.Context, networkID string) ([]string, error) {
	coll, err := r.collection(ctx, collSensitivityEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sensitivity_entries collection: %w", err)
	}
	query := fmt.Sprintf("FOR e IN %s FILTER e.network_id == @networkId RETURN DISTINCT e.leak_node_id", coll.Name())
	cursor, err := r.db.Query(ctx, query, map[string]interface{}{"networkId": networkID})
	if err != nil {
		return nil, fmt.Errorf("failed to query sensitivity candidates: %w", err)
	}
	defer cursor.Close()

	var out []string
	for cursor.HasMore() {
		var id string
		if _, err := cursor.ReadDocument(ctx, &id); err != nil {
			return nil, fmt.Errorf("failed to read candidate id: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}
