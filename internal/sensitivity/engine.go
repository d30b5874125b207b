// Package sensitivity implements the Sensitivity Matrix Engine (spec §4.D):
// an O(N) fan-out of leak simulations over a network's candidate nodes,
// bounded to 5 concurrent simulator handles, persisted as a sparse
// (leak_node_id, sensor_id) matrix with async progress tracking through a
// process-wide BuildCoordinator.
package sensitivity

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/network"
	"github.com/aosanya/waterguard/internal/simulator"
	"github.com/aosanya/waterguard/internal/waterr"
)

// Concurrency bounds simultaneous with_leak invocations, per spec §4.D/§5.
const Concurrency = 5

// UnitLeakSize is the synthetic leak size used to compute sensitivity, per
// spec §4.D step 4.
const UnitLeakSize = 1.0

// BatchSize is the persistence batch size of spec §4.D step 6.
const BatchSize = 1000

// Engine orchestrates matrix builds for a repository of networks.
type Engine struct {
	repo        network.Repository
	sim         simulator.Engine
	coordinator *BuildCoordinator
}

// NewEngine constructs a sensitivity Engine.
func NewEngine(repo network.Repository, sim simulator.Engine) *Engine {
	return &Engine{repo: repo, sim: sim, coordinator: NewBuildCoordinator()}
}

// candidate pairs a leak node's label with its EPANET id.
type candidate struct {
	nodeID       string
	epanetNodeID string
}

// sensorTarget pairs a sensor's label with its host node's EPANET id.
type sensorTarget struct {
	sensorID     string
	epanetNodeID string
}

// Generate implements spec §4.D's generate(network_id, force). It resolves
// candidates/sensors and validates synchronously (so InvalidInput surfaces
// immediately), then runs the simulation fan-out in a detached goroutine —
// matrix builds are cancelled only at the process level, per spec §5.
func (e *Engine) Generate(ctx context.Context, networkID string, force bool) (*Status, error) {
	live := e.coordinator.Get(networkID)
	if live.State == StateInProgress {
		if force {
			return nil, waterr.New(waterr.Conflict, "a sensitivity matrix build is already in progress for this network")
		}
		return &live, nil
	}

	if !force {
		count, err := e.repo.CountSensitivityEntries(ctx, networkID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing sensitivity entries: %w", err)
		}
		if count > 0 {
			return &Status{State: StateCompleted, Stats: &Stats{TotalEntries: count}}, nil
		}
	}

	candidates, sensors, err := e.resolveTargets(ctx, networkID)
	if err != nil {
		return nil, err
	}

	net, err := e.repo.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}
	inp, err := os.ReadFile(net.StoragePath)
	if err != nil {
		return nil, waterr.Wrap(waterr.SimulatorUnavailable, "failed to read network's .inp file", err)
	}

	e.coordinator.Start(networkID, len(candidates))
	go e.runBuild(context.Background(), networkID, inp, candidates, sensors, force)

	started := e.coordinator.Get(networkID)
	return &started, nil
}

// Status implements spec §4.D's status().
func (e *Engine) Status(ctx context.Context, networkID string) (*Status, error) {
	st := e.coordinator.Get(networkID)
	if st.State != StateNotStarted {
		return &st, nil
	}
	count, err := e.repo.CountSensitivityEntries(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to check sensitivity entries: %w", err)
	}
	if count > 0 {
		return &Status{State: StateCompleted, Stats: &Stats{TotalEntries: count}}, nil
	}
	return &st, nil
}

// resolveTargets implements spec §4.D step 1.
func (e *Engine) resolveTargets(ctx context.Context, networkID string) ([]candidate, []sensorTarget, error) {
	nodes, err := e.repo.ListNodes(ctx, networkID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	byNodeID := make(map[string]*models.Node, len(nodes))
	var candidates []candidate
	for _, n := range nodes {
		byNodeID[n.NodeID] = n
		if n.EpanetNodeID != "" {
			candidates = append(candidates, candidate{nodeID: n.NodeID, epanetNodeID: n.EpanetNodeID})
		}
	}
	if len(candidates) == 0 {
		return nil, nil, waterr.New(waterr.InvalidInput, "network has zero candidate nodes with EPANET ids")
	}

	activeSensors, err := e.repo.ListActiveSensors(ctx, networkID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list active sensors: %w", err)
	}
	var sensors []sensorTarget
	for _, s := range activeSensors {
		host, ok := byNodeID[s.NodeID]
		if !ok || host.EpanetNodeID == "" {
			continue
		}
		sensors = append(sensors, sensorTarget{sensorID: s.SensorID, epanetNodeID: host.EpanetNodeID})
	}
	if len(sensors) == 0 {
		return nil, nil, waterr.New(waterr.InvalidInput, "network has zero active sensors with EPANET-tagged host nodes")
	}

	return candidates, sensors, nil
}

// runBuild implements spec §4.D steps 2-6.
func (e *Engine) runBuild(ctx context.Context, networkID string, inp []byte, candidates []candidate, sensors []sensorTarget, force bool) {
	if force {
		if err := e.repo.ClearSensitivityEntries(ctx, networkID); err != nil {
			log.WithError(err).WithField("network_id", networkID).Error("failed to clear sensitivity entries for forced rebuild")
			e.coordinator.Fail(networkID, err)
			return
		}
	}

	// One handle per worker, per spec §5: handles are never shared across
	// concurrent tasks. workerCount also bounds concurrency to 5.
	workerCount := Concurrency
	if len(candidates) < workerCount {
		workerCount = len(candidates)
	}
	handles := make([]*simulator.Handle, 0, workerCount)
	defer func() {
		for _, h := range handles {
			e.sim.Close(h)
		}
	}()
	for i := 0; i < workerCount; i++ {
		h, err := e.sim.Load(ctx, inp)
		if err != nil {
			log.WithError(err).WithField("network_id", networkID).Error("sensitivity build: handle load failed")
			e.coordinator.Fail(networkID, err)
			return
		}
		handles = append(handles, h)
	}

	sensorEpanetIDs := make([]string, len(sensors))
	for i, s := range sensors {
		sensorEpanetIDs[i] = s.epanetNodeID
	}

	baseline, err := e.sim.Baseline(ctx, handles[0], sensorEpanetIDs)
	if err != nil {
		log.WithError(err).WithField("network_id", networkID).Error("sensitivity build: baseline solve failed")
		e.coordinator.Fail(networkID, err)
		return
	}

	var (
		mu       sync.Mutex
		pending  []*models.SensitivityEntry
		total    int
		flushErr error
	)
	flush := func(force bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(pending) == 0 || (!force && len(pending) < BatchSize) {
			return
		}
		batch := pending
		pending = nil
		if flushErr != nil {
			return
		}
		if err := e.repo.UpsertSensitivityEntries(ctx, batch); err != nil {
			flushErr = err
			return
		}
		total += len(batch)
	}

	work := make(chan candidate)
	var wg sync.WaitGroup
	var processed int
	var processedMu sync.Mutex

	for _, h := range handles {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				withLeak, err := e.sim.WithLeak(ctx, h, c.epanetNodeID, UnitLeakSize, sensorEpanetIDs)
				if err != nil {
					log.WithError(err).WithFields(log.Fields{
						"network_id": networkID,
						"node_id":    c.nodeID,
					}).Warn("sensitivity build: candidate skipped")
				} else {
					entries := make([]*models.SensitivityEntry, 0, len(sensors))
					for _, s := range sensors {
						var value float64
						if UnitLeakSize > 0 {
							value = (withLeak[s.epanetNodeID] - baseline[s.epanetNodeID]) / UnitLeakSize
						}
						entries = append(entries, &models.SensitivityEntry{
							NetworkID:        networkID,
							LeakNodeID:       c.nodeID,
							SensorID:         s.sensorID,
							SensitivityValue: value,
						})
					}
					mu.Lock()
					pending = append(pending, entries...)
					mu.Unlock()
				}

				processedMu.Lock()
				processed++
				n := processed
				processedMu.Unlock()
				e.coordinator.UpdateProgress(networkID, n)
				flush(false)
			}
		}()
	}
	for _, c := range candidates {
		work <- c
	}
	close(work)
	wg.Wait()
	flush(true)

	if flushErr != nil {
		log.WithError(flushErr).WithField("network_id", networkID).Error("sensitivity build: persistence failed")
		e.coordinator.Fail(networkID, flushErr)
		return
	}

	e.coordinator.Complete(networkID, total)
}
