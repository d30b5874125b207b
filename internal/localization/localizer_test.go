package localization

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/topology"
	"github.com/aosanya/waterguard/internal/waterr"
)

type fakeRepo struct {
	sensors  []*models.Sensor
	readings []*models.Reading
	entries  []*models.SensitivityEntry
	nodes    []*models.Node
	updated  *models.LeakDetection
}

func (f *fakeRepo) CreateNetwork(ctx context.Context, n *models.Network) error { return nil }
func (f *fakeRepo) GetNetwork(ctx context.Context, networkID string) (*models.Network, error) {
	return nil, nil
}
func (f *fakeRepo) ListNetworks(ctx context.Context) ([]*models.Network, error) { return nil, nil }
func (f *fakeRepo) CreateNode(ctx context.Context, n *models.Node) error        { return nil }
func (f *fakeRepo) CreateNodes(ctx context.Context, nodes []*models.Node) error { return nil }
func (f *fakeRepo) GetNode(ctx context.Context, networkID, nodeID string) (*models.Node, error) {
	return nil, nil
}
func (f *fakeRepo) ListNodes(ctx context.Context, networkID string) ([]*models.Node, error) {
	return f.nodes, nil
}
func (f *fakeRepo) CreatePartition(ctx context.Context, p *models.Partition) error { return nil }
func (f *fakeRepo) ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error) {
	return nil, nil
}
func (f *fakeRepo) GetPartition(ctx context.Context, networkID, partitionID string) (*models.Partition, error) {
	return nil, nil
}
func (f *fakeRepo) CreateSensor(ctx context.Context, s *models.Sensor) error { return nil }
func (f *fakeRepo) GetSensor(ctx context.Context, networkID, sensorID string) (*models.Sensor, error) {
	return nil, nil
}
func (f *fakeRepo) ListSensors(ctx context.Context, networkID string) ([]*models.Sensor, error) {
	return f.sensors, nil
}
func (f *fakeRepo) ListActiveSensors(ctx context.Context, networkID string) ([]*models.Sensor, error) {
	return f.sensors, nil
}
func (f *fakeRepo) CreateReadings(ctx context.Context, readings []*models.Reading) error { return nil }
func (f *fakeRepo) ReadingsInWindow(ctx context.Context, networkID, sensorID string, from, to time.Time) ([]*models.Reading, error) {
	var out []*models.Reading
	for _, r := range f.readings {
		if r.SensorID == sensorID && !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeRepo) ClearSensitivityEntries(ctx context.Context, networkID string) error { return nil }
func (f *fakeRepo) UpsertSensitivityEntries(ctx context.Context, entries []*models.SensitivityEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}
func (f *fakeRepo) CountSensitivityEntries(ctx context.Context, networkID string) (int, error) {
	return len(f.entries), nil
}
func (f *fakeRepo) SensitivityRow(ctx context.Context, networkID, leakNodeID string) (map[string]float64, error) {
	row := make(map[string]float64)
	for _, e := range f.entries {
		if e.LeakNodeID == leakNodeID {
			row[e.SensorID] = e.SensitivityValue
		}
	}
	return row, nil
}
func (f *fakeRepo) SensitivityCandidates(ctx context.Context, networkID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range f.entries {
		if !seen[e.LeakNodeID] {
			seen[e.LeakNodeID] = true
			out = append(out, e.LeakNodeID)
		}
	}
	return out, nil
}
func (f *fakeRepo) CreateLeakDetection(ctx context.Context, d *models.LeakDetection) error { return nil }
func (f *fakeRepo) GetLeakDetection(ctx context.Context, networkID, detectionID string) (*models.LeakDetection, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateLeakDetection(ctx context.Context, d *models.LeakDetection) error {
	f.updated = d
	return nil
}
func (f *fakeRepo) ListLeakDetections(ctx context.Context, networkID string) ([]*models.LeakDetection, error) {
	return nil, nil
}

func TestLocalizer_ExactMatchWinsWithHighScore(t *testing.T) {
	tRef := time.Now()
	repo := &fakeRepo{
		sensors: []*models.Sensor{
			{NetworkID: "net1", SensorID: "S1", NodeID: "H1"},
			{NetworkID: "net1", SensorID: "S2", NodeID: "H2"},
		},
		readings: []*models.Reading{
			// baseline window: both sensors read 5.0
			{SensorID: "S1", FlowValue: 5.0, Timestamp: tRef.Add(-1800 * time.Second)},
			{SensorID: "S2", FlowValue: 5.0, Timestamp: tRef.Add(-1800 * time.Second)},
			// detection window: S1 rises by 4, S2 falls by 2
			{SensorID: "S1", FlowValue: 9.0, Timestamp: tRef},
			{SensorID: "S2", FlowValue: 3.0, Timestamp: tRef},
		},
		entries: []*models.SensitivityEntry{
			{NetworkID: "net1", LeakNodeID: "NODE_A", SensorID: "S1", SensitivityValue: 4.0},
			{NetworkID: "net1", LeakNodeID: "NODE_A", SensorID: "S2", SensitivityValue: -2.0},
			{NetworkID: "net1", LeakNodeID: "NODE_B", SensorID: "S1", SensitivityValue: 0.2},
			{NetworkID: "net1", LeakNodeID: "NODE_B", SensorID: "S2", SensitivityValue: 0.2},
		},
	}

	det := models.NewLeakDetection("net1", "J1", "", 1.0, 5.0, 300, tRef, tRef)
	loc := NewLocalizer(repo, topology.NewService(repo))
	result, err := loc.Localize(context.Background(), det, 0)
	require.NoError(t, err)

	assert.Equal(t, "NODE_A", result.WinnerNodeID)
	assert.Greater(t, result.Score, 0.9)
	assert.Equal(t, "NODE_A", det.LocalizedNodeID)
	assert.Equal(t, models.StatusLocalized, det.Status)
	require.NotNil(t, repo.updated)
}

func TestLocalizer_NoCandidatesUndetermined(t *testing.T) {
	repo := &fakeRepo{}
	det := models.NewLeakDetection("net1", "J1", "", 1.0, 5.0, 300, time.Now(), time.Now())
	loc := NewLocalizer(repo, topology.NewService(repo))

	_, err := loc.Localize(context.Background(), det, 0)
	require.Error(t, err)
	assert.Equal(t, waterr.LocalizationUndetermined, waterr.KindOf(err))
}
