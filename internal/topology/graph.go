// Package topology builds the in-memory parent/child graph of a water
// network from a persisted node snapshot, and answers ancestor/descendant
// queries over it (nearest mainline ancestor, DMA subtree membership),
// mirroring the adjacency-list-plus-cycle-detection approach the teacher
// uses for its workflow dependency graph.
package topology

import (
	"context"
	"fmt"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/waterr"
)

// Graph is an in-memory snapshot of one network's node hierarchy.
type Graph struct {
	byID     map[string]*models.Node
	children map[string][]string // parent node_id -> child node_ids
}

// Build constructs a Graph from a flat node list. It does not itself detect
// cycles — cycle detection happens lazily during traversal, per spec §4.A,
// so a network can still answer queries about the parts of itself that are
// acyclic.
func Build(nodes []*models.Node) *Graph {
	g := &Graph{
		byID:     make(map[string]*models.Node, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		g.byID[n.NodeID] = n
	}
	for _, n := range nodes {
		if n.ParentID != "" {
			g.children[n.ParentID] = append(g.children[n.ParentID], n.NodeID)
		}
	}
	return g
}

// FindMainlineFor walks up the parent chain from nodeID and returns the
// nearest MAINLINE ancestor's node_id, or "" if none exists (nodeID itself
// reaches a root with no mainline, e.g. an orphaned subtree). Returns
// InvariantViolation if the walk detects a cycle.
func (g *Graph) FindMainlineFor(nodeID string) (string, error) {
	visited := make(map[string]bool)
	cur := nodeID
	for {
		n, ok := g.byID[cur]
		if !ok {
			return "", nil
		}
		if n.NodeType == models.NodeMainline {
			return n.NodeID, nil
		}
		if visited[cur] {
			return "", waterr.Newf(waterr.InvariantViolation, "cycle detected in parent graph at node %q", cur)
		}
		visited[cur] = true
		if n.ParentID == "" {
			return "", nil
		}
		cur = n.ParentID
	}
}

// NodesInDMA returns the set of node ids reachable by BFS from mainlineID
// through the child relation (inclusive of mainlineID itself). Returns
// InvariantViolation if a cycle is encountered during the walk.
func (g *Graph) NodesInDMA(mainlineID string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	queue := []string{mainlineID}
	result[mainlineID] = struct{}{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.children[cur] {
			if _, seen := result[child]; seen {
				return nil, waterr.Newf(waterr.InvariantViolation, "cycle detected in parent graph at node %q", child)
			}
			result[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return result, nil
}

// Node returns the node with the given node_id, if present in the snapshot.
func (g *Graph) Node(nodeID string) (*models.Node, bool) {
	n, ok := g.byID[nodeID]
	return n, ok
}

// Children returns the direct children of nodeID, per the parent relation.
func (g *Graph) Children(nodeID string) []string {
	return g.children[nodeID]
}

// Mainlines returns every MAINLINE node in the snapshot.
func (g *Graph) Mainlines() []*models.Node {
	var out []*models.Node
	for _, n := range g.byID {
		if n.NodeType == models.NodeMainline {
			out = append(out, n)
		}
	}
	return out
}

// Repository is the narrow persistence contract topology needs; the
// network package's repository satisfies it.
type Repository interface {
	ListNodes(ctx context.Context, networkID string) ([]*models.Node, error)
	ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error)
	CreatePartition(ctx context.Context, p *models.Partition) error
}

// Service exposes the component-4.A contract over a Repository, loading a
// fresh snapshot per call — the teacher accepts stale-between-requests
// in-memory state (spec §5) rather than keeping a long-lived cache.
type Service struct {
	repo Repository
}

// NewService constructs a topology Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Graph loads a fresh snapshot of networkID's hierarchy, for callers (such
// as the mass-balance detector) that need direct graph queries beyond the
// Service's own contract.
func (s *Service) Graph(ctx context.Context, networkID string) (*Graph, error) {
	return s.loadGraph(ctx, networkID)
}

func (s *Service) loadGraph(ctx context.Context, networkID string) (*Graph, error) {
	nodes, err := s.repo.ListNodes(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return Build(nodes), nil
}

// FindMainlineFor implements spec §4.A's find_mainline_for.
func (s *Service) FindMainlineFor(ctx context.Context, networkID, nodeID string) (string, error) {
	g, err := s.loadGraph(ctx, networkID)
	if err != nil {
		return "", err
	}
	return g.FindMainlineFor(nodeID)
}

// NodesInDMA implements spec §4.A's nodes_in_dma, resolving partitionID to
// its mainline before walking the tree.
func (s *Service) NodesInDMA(ctx context.Context, networkID, partitionID string) (map[string]struct{}, error) {
	partitions, err := s.repo.ListPartitions(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	var mainlineID string
	found := false
	for _, p := range partitions {
		if p.PartitionID == partitionID {
			mainlineID = p.MainlineID
			found = true
			break
		}
	}
	if !found {
		return nil, waterr.Newf(waterr.NotFound, "partition %q not found", partitionID)
	}

	g, err := s.loadGraph(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return g.NodesInDMA(mainlineID)
}

// CreateDMAsForMainlines implements spec §4.A's create_dmas_for_mainlines:
// idempotently creates one partition per MAINLINE node lacking one.
func (s *Service) CreateDMAsForMainlines(ctx context.Context, networkID string) (int, error) {
	g, err := s.loadGraph(ctx, networkID)
	if err != nil {
		return 0, err
	}
	partitions, err := s.repo.ListPartitions(ctx, networkID)
	if err != nil {
		return 0, fmt.Errorf("failed to list partitions: %w", err)
	}
	hasMainline := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		hasMainline[p.MainlineID] = true
	}

	created := 0
	for _, m := range g.Mainlines() {
		if hasMainline[m.NodeID] {
			continue
		}
		p := &models.Partition{
			NetworkID:   networkID,
			PartitionID: fmt.Sprintf("DMA_%s", m.NodeID),
			MainlineID:  m.NodeID,
		}
		if err := s.repo.CreatePartition(ctx, p); err != nil {
			return created, fmt.Errorf("failed to create partition for mainline %q: %w", m.NodeID, err)
		}
		created++
	}
	return created, nil
}
