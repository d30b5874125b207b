package topology

import (
	"context"
	"testing"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/waterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainNodes() []*models.Node {
	return []*models.Node{
		{NodeID: "M", NodeType: models.NodeMainline},
		{NodeID: "B", NodeType: models.NodeBranch, ParentID: "M"},
		{NodeID: "H1", NodeType: models.NodeHousehold, ParentID: "B"},
		{NodeID: "H2", NodeType: models.NodeHousehold, ParentID: "B"},
	}
}

func TestGraph_FindMainlineFor(t *testing.T) {
	g := Build(chainNodes())

	id, err := g.FindMainlineFor("H1")
	require.NoError(t, err)
	assert.Equal(t, "M", id)

	id, err = g.FindMainlineFor("M")
	require.NoError(t, err)
	assert.Equal(t, "M", id)
}

func TestGraph_NodesInDMA(t *testing.T) {
	g := Build(chainNodes())

	set, err := g.NodesInDMA("M")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"M": {}, "B": {}, "H1": {}, "H2": {},
	}, set)
}

func TestGraph_CycleDetection(t *testing.T) {
	nodes := []*models.Node{
		{NodeID: "A", NodeType: models.NodeBranch, ParentID: "B"},
		{NodeID: "B", NodeType: models.NodeBranch, ParentID: "A"},
	}
	g := Build(nodes)

	_, err := g.FindMainlineFor("A")
	require.Error(t, err)
	assert.Equal(t, waterr.InvariantViolation, waterr.KindOf(err))
}

type fakeRepo struct {
	nodes      []*models.Node
	partitions []*models.Partition
	created    []*models.Partition
}

func (f *fakeRepo) ListNodes(ctx context.Context, networkID string) ([]*models.Node, error) {
	return f.nodes, nil
}

func (f *fakeRepo) ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error) {
	return f.partitions, nil
}

func (f *fakeRepo) CreatePartition(ctx context.Context, p *models.Partition) error {
	f.created = append(f.created, p)
	f.partitions = append(f.partitions, p)
	return nil
}

func TestService_CreateDMAsForMainlines_Idempotent(t *testing.T) {
	repo := &fakeRepo{nodes: []*models.Node{
		{NodeID: "M1", NodeType: models.NodeMainline},
		{NodeID: "M2", NodeType: models.NodeMainline},
	}}
	svc := NewService(repo)

	created, err := svc.CreateDMAsForMainlines(context.Background(), "net1")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Second call is a no-op since both mainlines now have partitions.
	created, err = svc.CreateDMAsForMainlines(context.Background(), "net1")
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, repo.partitions, 2)
}

func TestService_NodesInDMA_UnknownPartition(t *testing.T) {
	repo := &fakeRepo{nodes: chainNodes()}
	svc := NewService(repo)

	_, err := svc.NodesInDMA(context.Background(), "net1", "DMA_UNKNOWN")
	require.Error(t, err)
	assert.Equal(t, waterr.NotFound, waterr.KindOf(err))
}
