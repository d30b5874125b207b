package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/topology"
)

type fakeRepo struct {
	nodes      []*models.Node
	sensors    []*models.Sensor
	readings   []*models.Reading
	detections []*models.LeakDetection
	partitions []*models.Partition
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
func (f *fakeRepo) CreatePartition(ctx context.Context, p *models.Partition) error {
	f.partitions = append(f.partitions, p)
	return nil
}
func (f *fakeRepo) ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error) {
	return f.partitions, nil
}
func (f *fakeRepo) GetPartition(ctx context.Context, networkID, partitionID string) (*models.Partition, error) {
	for _, p := range f.partitions {
		if p.PartitionID == partitionID {
			return p, nil
		}
	}
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
	return nil
}
func (f *fakeRepo) CountSensitivityEntries(ctx context.Context, networkID string) (int, error) {
	return 0, nil
}
func (f *fakeRepo) SensitivityRow(ctx context.Context, networkID, leakNodeID string) (map[string]float64, error) {
	return nil, nil
}
func (f *fakeRepo) SensitivityCandidates(ctx context.Context, networkID string) ([]string, error) {
	return nil, nil
}
func (f *fakeRepo) CreateLeakDetection(ctx context.Context, d *models.LeakDetection) error {
	f.detections = append(f.detections, d)
	return nil
}
func (f *fakeRepo) GetLeakDetection(ctx context.Context, networkID, detectionID string) (*models.LeakDetection, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateLeakDetection(ctx context.Context, d *models.LeakDetection) error { return nil }
func (f *fakeRepo) ListLeakDetections(ctx context.Context, networkID string) ([]*models.LeakDetection, error) {
	return f.detections, nil
}

func chainFixture(tRef time.Time) *fakeRepo {
	return &fakeRepo{
		nodes: []*models.Node{
			{NetworkID: "net1", NodeID: "M", NodeType: models.NodeMainline},
			{NetworkID: "net1", NodeID: "B", NodeType: models.NodeBranch, ParentID: "M"},
			{NetworkID: "net1", NodeID: "H1", NodeType: models.NodeHousehold, ParentID: "B"},
			{NetworkID: "net1", NodeID: "H2", NodeType: models.NodeHousehold, ParentID: "B"},
		},
		sensors: []*models.Sensor{
			{NetworkID: "net1", SensorID: "MAIN_01", SensorType: models.SensorMainlineFlow, NodeID: "M", IsActive: true},
			{NetworkID: "net1", SensorID: "HH_01", SensorType: models.SensorHouseholdFlow, NodeID: "H1", IsActive: true},
			{NetworkID: "net1", SensorID: "HH_02", SensorType: models.SensorHouseholdFlow, NodeID: "H2", IsActive: true},
		},
		readings: []*models.Reading{
			{NetworkID: "net1", SensorID: "MAIN_01", FlowValue: 20.0, Timestamp: tRef},
			{NetworkID: "net1", SensorID: "HH_01", FlowValue: 7.0, Timestamp: tRef},
			{NetworkID: "net1", SensorID: "HH_02", FlowValue: 5.0, Timestamp: tRef},
		},
	}
}

func TestDetector_TrivialChain_DetectsAtBranch(t *testing.T) {
	tRef := time.Now()
	repo := chainFixture(tRef)
	det := NewDetector(repo, topology.NewService(repo))

	detections, err := det.Detect(context.Background(), Request{NetworkID: "net1", Timestamp: tRef})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "B", detections[0].NodeID)
	assert.InDelta(t, 8.0, detections[0].FlowImbalance, 1e-9)
	assert.Equal(t, models.SeverityLow, detections[0].Severity)
	assert.Equal(t, models.StatusDetected, detections[0].Status)
}

func TestDetector_DMAScope(t *testing.T) {
	tRef := time.Now()
	repo := chainFixture(tRef)
	repo.sensors[0].NodeID = "M" // mainline sensor stays on M
	svc := topology.NewService(repo)
	_, err := svc.CreateDMAsForMainlines(context.Background(), "net1")
	require.NoError(t, err)

	det := NewDetector(repo, svc)
	detections, err := det.Detect(context.Background(), Request{NetworkID: "net1", Timestamp: tRef, PartitionID: "DMA_M"})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.InDelta(t, 8.0, detections[0].FlowImbalance, 1e-9)
	assert.Equal(t, "DMA_M", detections[0].PartitionID)
}

func TestDetector_NoLeak_NoDetections(t *testing.T) {
	tRef := time.Now()
	repo := chainFixture(tRef)
	repo.readings[0].FlowValue = 12.0 // M now balances exactly

	det := NewDetector(repo, topology.NewService(repo))
	detections, err := det.Detect(context.Background(), Request{NetworkID: "net1", Timestamp: tRef})
	require.NoError(t, err)
	assert.Empty(t, detections)
}
