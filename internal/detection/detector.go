// Package detection implements the Mass-Balance Detector (spec §4.E):
// time-windowed inflow/outflow aggregation at a node or DMA, yielding a
// thresholded LeakDetection with severity when the imbalance exceeds theta.
package detection

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/network"
	"github.com/aosanya/waterguard/internal/topology"
)

// DefaultThreshold and DefaultWindow are spec §4.E's defaults.
const (
	DefaultThreshold = 5.0
	DefaultWindow    = 300 * time.Second
)

// Detector runs the mass-balance rule over a network's nodes and DMAs.
type Detector struct {
	repo network.Repository
	topo *topology.Service
}

// NewDetector constructs a Detector.
func NewDetector(repo network.Repository, topo *topology.Service) *Detector {
	return &Detector{repo: repo, topo: topo}
}

// Request parameterizes one detection invocation, per spec §4.E.
type Request struct {
	NetworkID   string
	Timestamp   time.Time
	Threshold   float64
	Window      time.Duration
	NodeID      string // optional single-node scope
	PartitionID string // optional DMA scope
}

func (r Request) normalized() Request {
	if r.Threshold == 0 {
		r.Threshold = DefaultThreshold
	}
	if r.Window == 0 {
		r.Window = DefaultWindow
	}
	return r
}

// Detect implements spec §4.E: a single-node/DMA scoped detection when
// NodeID or PartitionID is set, otherwise the multi-scope sweep over every
// JUNCTION/BRANCH node.
func (d *Detector) Detect(ctx context.Context, req Request) ([]*models.LeakDetection, error) {
	req = req.normalized()

	if req.PartitionID != "" {
		det, err := d.detectAtPartition(ctx, req)
		if err != nil {
			return nil, err
		}
		if det == nil {
			return nil, nil
		}
		return []*models.LeakDetection{det}, nil
	}
	if req.NodeID != "" {
		det, err := d.detectAtNode(ctx, req, req.NodeID)
		if err != nil {
			return nil, err
		}
		if det == nil {
			return nil, nil
		}
		return []*models.LeakDetection{det}, nil
	}
	return d.detectAllScopes(ctx, req)
}

// detectAllScopes runs the single-node rule over every JUNCTION and BRANCH
// node; per-scope failures are logged and skipped, per spec §4.E.
func (d *Detector) detectAllScopes(ctx context.Context, req Request) ([]*models.LeakDetection, error) {
	nodes, err := d.repo.ListNodes(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}

	var detections []*models.LeakDetection
	for _, n := range nodes {
		if n.NodeType != models.NodeJunction && n.NodeType != models.NodeBranch {
			continue
		}
		det, err := d.detectAtNode(ctx, req, n.NodeID)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"network_id": req.NetworkID,
				"node_id":    n.NodeID,
			}).Warn("mass-balance detection skipped for scope")
			continue
		}
		if det != nil {
			detections = append(detections, det)
		}
	}
	return detections, nil
}

// detectAtNode implements spec §4.E's single-node mass balance rule.
func (d *Detector) detectAtNode(ctx context.Context, req Request, nodeID string) (*models.LeakDetection, error) {
	g, err := d.topo.Graph(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return nil, nil
	}

	sensors, err := d.repo.ListSensors(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}

	var inflowNodes, outflowNodes map[string]bool
	if n.ParentID != "" {
		inflowNodes = map[string]bool{n.ParentID: true}
	}
	outflowNodes = make(map[string]bool)
	for _, child := range g.Children(nodeID) {
		outflowNodes[child] = true
	}

	inflow, err := d.sumSensorsOn(ctx, req, sensors, inflowNodes)
	if err != nil {
		return nil, err
	}
	outflow, err := d.sumSensorsOn(ctx, req, sensors, outflowNodes)
	if err != nil {
		return nil, err
	}

	return d.maybePersist(ctx, req, nodeID, "", inflow-outflow)
}

// detectAtPartition implements spec §4.E's DMA mass balance rule: inflow
// from MAINLINE_FLOW sensors, outflow from HOUSEHOLD/HOUSEHOLD_FLOW sensors,
// restricted to the DMA's subtree.
func (d *Detector) detectAtPartition(ctx context.Context, req Request) (*models.LeakDetection, error) {
	dmaNodes, err := d.topo.NodesInDMA(ctx, req.NetworkID, req.PartitionID)
	if err != nil {
		return nil, err
	}

	sensors, err := d.repo.ListSensors(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	nodes, err := d.repo.ListNodes(ctx, req.NetworkID)
	if err != nil {
		return nil, err
	}
	nodeType := make(map[string]models.NodeType, len(nodes))
	for _, n := range nodes {
		nodeType[n.NodeID] = n.NodeType
	}

	var inflow, outflow float64
	for _, s := range sensors {
		if _, inDMA := dmaNodes[s.NodeID]; !inDMA {
			continue
		}
		mean, ok, err := d.meanWindow(ctx, req, s.SensorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if s.SensorType == models.SensorMainlineFlow {
			inflow += mean
		}
		if s.SensorType == models.SensorHouseholdFlow || nodeType[s.NodeID] == models.NodeHousehold {
			outflow += mean
		}
	}

	return d.maybePersist(ctx, req, "", req.PartitionID, inflow-outflow)
}

func (d *Detector) sumSensorsOn(ctx context.Context, req Request, sensors []*models.Sensor, nodeIDs map[string]bool) (float64, error) {
	var total float64
	for _, s := range sensors {
		if !nodeIDs[s.NodeID] {
			continue
		}
		mean, ok, err := d.meanWindow(ctx, req, s.SensorID)
		if err != nil {
			return 0, err
		}
		if ok {
			total += mean
		}
	}
	return total, nil
}

// meanWindow implements spec §4.E's aggregation rule: the arithmetic mean
// of flow_value over [T-W, T], or ok=false if the sensor has no readings
// in that window.
func (d *Detector) meanWindow(ctx context.Context, req Request, sensorID string) (float64, bool, error) {
	from := req.Timestamp.Add(-req.Window)
	readings, err := d.repo.ReadingsInWindow(ctx, req.NetworkID, sensorID, from, req.Timestamp)
	if err != nil {
		return 0, false, err
	}
	if len(readings) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, r := range readings {
		sum += r.FlowValue
	}
	return sum / float64(len(readings)), true, nil
}

// maybePersist applies the detection predicate and severity table, creating
// and persisting a LeakDetection when imbalance exceeds req.Threshold.
func (d *Detector) maybePersist(ctx context.Context, req Request, nodeID, partitionID string, imbalance float64) (*models.LeakDetection, error) {
	if imbalance <= req.Threshold {
		return nil, nil
	}
	det := models.NewLeakDetection(
		req.NetworkID, nodeID, partitionID,
		imbalance, req.Threshold, req.Window.Seconds(),
		req.Timestamp, time.Now(),
	)
	if err := d.repo.CreateLeakDetection(ctx, det); err != nil {
		return nil, err
	}
	return det, nil
}
