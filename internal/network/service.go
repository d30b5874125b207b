package network

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aosanya/waterguard/internal/epanet"
	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/topology"
	"github.com/aosanya/waterguard/internal/waterr"
	"github.com/google/uuid"
)

// Service composes Repository with the import and sensor-placement
// operations spec §6 exposes over /network and /sensors routes, the way
// the teacher's agency.Service composes its repository with goal/task
// business rules.
type Service struct {
	repo       Repository
	topo       *topology.Service
	storageDir string
}

// NewService constructs a network Service. storageDir is the root
// directory .inp files are written under, per spec §6's persisted layout.
func NewService(repo Repository, storageDir string) *Service {
	return &Service{
		repo:       repo,
		topo:       topology.NewService(repo),
		storageDir: storageDir,
	}
}

// ImportResult is the response shape of spec §6's import endpoint.
type ImportResult struct {
	NetworkID      string
	NodesImported  int
	LinksImported  int
	DMAsCreated    int
}

// ImportEpanet implements spec §6's POST /network/import/epanet: parses the
// uploaded .inp, persists the node hierarchy, writes the file to
// storageDir/<networkId>.inp, and idempotently creates one DMA per mainline.
func (s *Service) ImportEpanet(ctx context.Context, fileName string, data []byte) (*ImportResult, error) {
	if err := epanet.ValidateFile(fileName); err != nil {
		return nil, err
	}
	parsed, err := epanet.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(parsed.Nodes) == 0 {
		return nil, waterr.New(waterr.InvalidInput, "no nodes found in .inp file")
	}

	networkID := uuid.NewString()
	storagePath := filepath.Join(s.storageDir, fmt.Sprintf("%s.inp", networkID))
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return nil, waterr.Wrap(waterr.InvalidInput, "failed to create storage directory", err)
	}
	if err := os.WriteFile(storagePath, data, 0o644); err != nil {
		return nil, waterr.Wrap(waterr.InvalidInput, "failed to persist .inp file", err)
	}

	if err := s.repo.CreateNetwork(ctx, &models.Network{
		ID:          networkID,
		CreatedAt:   time.Now(),
		StoragePath: storagePath,
	}); err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	nodes := make([]*models.Node, 0, len(parsed.Nodes))
	for _, n := range parsed.Nodes {
		nodes = append(nodes, &models.Node{
			NetworkID:    networkID,
			NodeID:       n.ID,
			NodeType:     n.Role,
			ParentID:     n.ParentID,
			EpanetNodeID: n.ID,
		})
	}
	if err := s.repo.CreateNodes(ctx, nodes); err != nil {
		return nil, fmt.Errorf("failed to persist nodes: %w", err)
	}

	dmasCreated, err := s.topo.CreateDMAsForMainlines(ctx, networkID)
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		NetworkID:     networkID,
		NodesImported: len(nodes),
		LinksImported: len(parsed.Links),
		DMAsCreated:   dmasCreated,
	}, nil
}

// PlacementReport is the response shape of spec §6's POST /sensors/auto-place.
type PlacementReport struct {
	NetworkID string
	Placed    []*models.Sensor
}

// AutoPlaceSensors implements spec §6's greedy, deterministic placement
// algorithm: MAINLINEs without a sensor first (ascending node_id), then
// JUNCTIONs by descending outgoing degree (ties by node_id), then BRANCHes
// the same way, until targetCount new sensors have been placed or candidates
// are exhausted. Sensors already in the network do not count towards
// targetCount.
func (s *Service) AutoPlaceSensors(ctx context.Context, networkID string, targetCount int) (*PlacementReport, error) {
	if targetCount < 1 || targetCount > 1000 {
		return nil, waterr.Newf(waterr.InvalidInput, "targetCount must be in [1, 1000], got %d", targetCount)
	}

	nodes, err := s.repo.ListNodes(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	existing, err := s.repo.ListSensors(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	hasSensor := make(map[string]bool, len(existing))
	for _, sen := range existing {
		hasSensor[sen.NodeID] = true
	}

	outDegree := make(map[string]int)
	for _, n := range nodes {
		if n.ParentID != "" {
			outDegree[n.ParentID]++
		}
	}

	var mainlines, junctions, branches []*models.Node
	for _, n := range nodes {
		if hasSensor[n.NodeID] {
			continue
		}
		switch n.NodeType {
		case models.NodeMainline:
			mainlines = append(mainlines, n)
		case models.NodeJunction:
			junctions = append(junctions, n)
		case models.NodeBranch:
			branches = append(branches, n)
		}
	}
	sort.Slice(mainlines, func(i, j int) bool { return mainlines[i].NodeID < mainlines[j].NodeID })
	sortByDegreeThenID := func(ns []*models.Node) {
		sort.Slice(ns, func(i, j int) bool {
			di, dj := outDegree[ns[i].NodeID], outDegree[ns[j].NodeID]
			if di != dj {
				return di > dj
			}
			return ns[i].NodeID < ns[j].NodeID
		})
	}
	sortByDegreeThenID(junctions)
	sortByDegreeThenID(branches)

	ordered := append(append(append([]*models.Node{}, mainlines...), junctions...), branches...)

	placed := make([]*models.Sensor, 0, targetCount)
	mainCount, juncCount, branchCount := 0, 0, 0
	for _, n := range ordered {
		if len(placed) >= targetCount {
			break
		}
		var sensorType models.SensorType
		var label string
		switch n.NodeType {
		case models.NodeMainline:
			mainCount++
			sensorType = models.SensorMainlineFlow
			label = fmt.Sprintf("MAIN_%02d", mainCount)
		case models.NodeJunction:
			juncCount++
			sensorType = models.SensorBranchJunctionFlow
			label = fmt.Sprintf("JUNC_%02d", juncCount)
		case models.NodeBranch:
			branchCount++
			sensorType = models.SensorBranchJunctionFlow
			label = fmt.Sprintf("BRANCH_%02d", branchCount)
		}
		sensor := &models.Sensor{
			NetworkID:  networkID,
			SensorID:   label,
			SensorType: sensorType,
			NodeID:     n.NodeID,
			IsActive:   true,
		}
		if err := s.repo.CreateSensor(ctx, sensor); err != nil {
			return nil, fmt.Errorf("failed to create sensor %q: %w", label, err)
		}
		placed = append(placed, sensor)
	}

	return &PlacementReport{NetworkID: networkID, Placed: placed}, nil
}

// RecordReading implements spec §6's POST /readings.
func (s *Service) RecordReading(ctx context.Context, r *models.Reading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	if r.Source == "" {
		r.Source = models.ReadingSourceManual
	}
	return s.repo.CreateReadings(ctx, []*models.Reading{r})
}

// RecordReadingsBatch implements spec §6's POST /readings/batch, failing
// with NotFound listing every sensor_id absent from networkID.
func (s *Service) RecordReadingsBatch(ctx context.Context, networkID string, readings []*models.Reading) error {
	if len(readings) == 0 {
		return waterr.New(waterr.InvalidInput, "readings batch must not be empty")
	}
	sensors, err := s.repo.ListSensors(ctx, networkID)
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}
	known := make(map[string]bool, len(sensors))
	for _, sen := range sensors {
		known[sen.SensorID] = true
	}
	var missing []string
	for _, r := range readings {
		if !known[r.SensorID] {
			missing = append(missing, r.SensorID)
		}
	}
	if len(missing) > 0 {
		return waterr.Newf(waterr.NotFound, "unknown sensor ids: %v", missing)
	}
	for _, r := range readings {
		r.NetworkID = networkID
		if r.Source == "" {
			r.Source = models.ReadingSourceSensor
		}
	}
	return s.repo.CreateReadings(ctx, readings)
}
