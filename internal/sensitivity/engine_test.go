package sensitivity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/simulator"
	"github.com/aosanya/waterguard/internal/waterr"
)

const chainINP = `[RESERVOIRS]
M 100

[JUNCTIONS]
B 10 0
H1 5 7
H2 5 5

[PIPES]
P1 M B
P2 B H1
P3 B H2
`

// fakeRepo is a minimal network.Repository stub exercising only what the
// sensitivity engine touches.
type fakeRepo struct {
	network    *models.Network
	nodes      []*models.Node
	sensors    []*models.Sensor
	entries    []*models.SensitivityEntry
	clearCalls int
}

func (f *fakeRepo) CreateNetwork(ctx context.Context, n *models.Network) error { return nil }
func (f *fakeRepo) GetNetwork(ctx context.Context, networkID string) (*models.Network, error) {
	return f.network, nil
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
	var out []*models.Sensor
	for _, s := range f.sensors {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeRepo) CreateReadings(ctx context.Context, readings []*models.Reading) error { return nil }
func (f *fakeRepo) ReadingsInWindow(ctx context.Context, networkID, sensorID string, from, to time.Time) ([]*models.Reading, error) {
	return nil, nil
}
func (f *fakeRepo) ClearSensitivityEntries(ctx context.Context, networkID string) error {
	f.clearCalls++
	f.entries = nil
	return nil
}
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
func (f *fakeRepo) UpdateLeakDetection(ctx context.Context, d *models.LeakDetection) error { return nil }
func (f *fakeRepo) ListLeakDetections(ctx context.Context, networkID string) ([]*models.LeakDetection, error) {
	return nil, nil
}

func newTestRepo(t *testing.T) *fakeRepo {
	dir := t.TempDir()
	path := filepath.Join(dir, "net1.inp")
	require.NoError(t, os.WriteFile(path, []byte(chainINP), 0o644))

	return &fakeRepo{
		network: &models.Network{ID: "net1", StoragePath: path},
		nodes: []*models.Node{
			{NetworkID: "net1", NodeID: "M", NodeType: models.NodeMainline, EpanetNodeID: "M"},
			{NetworkID: "net1", NodeID: "B", NodeType: models.NodeBranch, ParentID: "M", EpanetNodeID: "B"},
			{NetworkID: "net1", NodeID: "H1", NodeType: models.NodeHousehold, ParentID: "B", EpanetNodeID: "H1"},
			{NetworkID: "net1", NodeID: "H2", NodeType: models.NodeHousehold, ParentID: "B", EpanetNodeID: "H2"},
		},
		sensors: []*models.Sensor{
			{NetworkID: "net1", SensorID: "MAIN_01", SensorType: models.SensorMainlineFlow, NodeID: "M", IsActive: true},
			{NetworkID: "net1", SensorID: "HH_01", SensorType: models.SensorHouseholdFlow, NodeID: "H1", IsActive: true},
		},
	}
}

func waitForCompletion(t *testing.T, e *Engine, networkID string) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := e.Status(context.Background(), networkID)
		require.NoError(t, err)
		if st.State == StateCompleted || st.State == StateError {
			return *st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("build did not complete in time")
	return Status{}
}

func TestEngine_Generate_ProducesExpectedMatrixShape(t *testing.T) {
	repo := newTestRepo(t)
	eng := NewEngine(repo, simulator.NewSteadyStateEngine())

	st, err := eng.Generate(context.Background(), "net1", false)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, st.State)

	final := waitForCompletion(t, eng, "net1")
	require.Equal(t, StateCompleted, final.State)
	// |C|=4 candidates, |S|=2 sensors => 8 entries.
	assert.Equal(t, 8, final.Stats.TotalEntries)
}

func TestEngine_Generate_IdempotentWithoutForce(t *testing.T) {
	repo := newTestRepo(t)
	eng := NewEngine(repo, simulator.NewSteadyStateEngine())

	_, err := eng.Generate(context.Background(), "net1", false)
	require.NoError(t, err)
	waitForCompletion(t, eng, "net1")

	st, err := eng.Generate(context.Background(), "net1", false)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 8, st.Stats.TotalEntries)
}

func TestEngine_Generate_RejectsConcurrentForce(t *testing.T) {
	repo := newTestRepo(t)
	eng := NewEngine(repo, simulator.NewSteadyStateEngine())

	_, err := eng.Generate(context.Background(), "net1", false)
	require.NoError(t, err)

	_, err = eng.Generate(context.Background(), "net1", true)
	require.Error(t, err)
	assert.Equal(t, waterr.Conflict, waterr.KindOf(err))

	waitForCompletion(t, eng, "net1")
}

func TestEngine_Generate_EmptyCandidatesFails(t *testing.T) {
	repo := newTestRepo(t)
	repo.nodes = nil
	eng := NewEngine(repo, simulator.NewSteadyStateEngine())

	_, err := eng.Generate(context.Background(), "net1", false)
	require.Error(t, err)
	assert.Equal(t, waterr.InvalidInput, waterr.KindOf(err))
}
