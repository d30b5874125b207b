// Package simulator adapts a hydraulic solver to the steady-state,
// single-period contract spec §4.C needs: load a topology once, compute a
// baseline flow vector at the sensor nodes, and compute a leak-perturbed
// flow vector with guaranteed restoration of the pre-perturbation demand.
//
// A real EPANET toolkit binding is a cgo dependency outside this module's
// reach, so Engine is an interface with one reference implementation,
// SteadyStateEngine, that linearizes the steady-state mass balance over a
// tree-shaped network: the flow measured at a node equals the sum of
// demand (including any injected leak) at every node in its downstream
// subtree. This keeps sensitivities finite and bounded as spec §8
// requires, and is swappable for a cgo-backed EPANET engine later without
// touching callers.
package simulator

import (
	"bytes"
	"context"
	"math"
	"sync"
	"time"

	"github.com/aosanya/waterguard/internal/epanet"
	"github.com/aosanya/waterguard/internal/retry"
	"github.com/aosanya/waterguard/internal/waterr"
)

// SolveTimeout bounds a single steady-state solve, per spec §4.C.
const SolveTimeout = 30 * time.Second

// LoadRetries and LoadBackoff govern Engine.Load's retry policy, per spec §4.C.
const (
	LoadRetries = 3
	LoadBackoff = 1 * time.Second
)

// Engine is the adapter contract over a hydraulic solver.
type Engine interface {
	// Load opens a workspace for the given .inp source, retrying on
	// failure per spec §4.C.
	Load(ctx context.Context, inp []byte) (*Handle, error)

	// Baseline runs a steady-state solve and returns the demand computed
	// at each requested sensor node.
	Baseline(ctx context.Context, h *Handle, sensorEpanetIDs []string) (map[string]float64, error)

	// WithLeak adds leakSize to the base demand at leakEpanetID, re-solves,
	// and restores the original demand before returning, on every exit path.
	WithLeak(ctx context.Context, h *Handle, leakEpanetID string, leakSize float64, sensorEpanetIDs []string) (map[string]float64, error)

	// Close releases the handle's resources.
	Close(h *Handle) error
}

// Handle is a loaded, single-threaded simulation workspace. Callers must
// not share a Handle across goroutines; parallelism comes from opening one
// Handle per worker, per spec §4.C.
type Handle struct {
	mu       sync.Mutex
	children map[string][]string
	demand   map[string]float64
	closed   bool
}

// SteadyStateEngine is the reference Engine implementation described above.
type SteadyStateEngine struct{}

// NewSteadyStateEngine constructs a SteadyStateEngine.
func NewSteadyStateEngine() *SteadyStateEngine {
	return &SteadyStateEngine{}
}

// Load parses inp and builds the child adjacency + base demand map used by
// Baseline/WithLeak, retrying parse failures per spec §4.C.
func (e *SteadyStateEngine) Load(ctx context.Context, inp []byte) (*Handle, error) {
	var h *Handle
	err := retry.Do(ctx, LoadRetries, LoadBackoff, func() error {
		parsed, perr := epanet.Parse(bytes.NewReader(inp))
		if perr != nil {
			return perr
		}
		children := make(map[string][]string)
		demand := make(map[string]float64)
		for _, n := range parsed.Nodes {
			demand[n.ID] = n.Demand
		}
		for _, n := range parsed.Nodes {
			if n.ParentID != "" {
				children[n.ParentID] = append(children[n.ParentID], n.ID)
			}
		}
		h = &Handle{children: children, demand: demand}
		return nil
	})
	if err != nil {
		return nil, waterr.Wrap(waterr.SimulatorUnavailable, "failed to load simulator workspace", err)
	}
	return h, nil
}

// Baseline implements Engine.Baseline.
func (e *SteadyStateEngine) Baseline(ctx context.Context, h *Handle, sensorEpanetIDs []string) (map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return solve(ctx, h, sensorEpanetIDs)
}

// WithLeak implements Engine.WithLeak, guaranteeing restoration of the
// original base demand at leakEpanetID on every exit path.
func (e *SteadyStateEngine) WithLeak(ctx context.Context, h *Handle, leakEpanetID string, leakSize float64, sensorEpanetIDs []string) (map[string]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	original := h.demand[leakEpanetID]
	h.demand[leakEpanetID] = original + leakSize
	defer func() { h.demand[leakEpanetID] = original }()

	return solve(ctx, h, sensorEpanetIDs)
}

// Close implements Engine.Close.
func (e *SteadyStateEngine) Close(h *Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// solve computes, for each requested sensor node, the sum of demand over
// its downstream subtree (inclusive), bounded by SolveTimeout and guarded
// against cycles in the child adjacency.
func solve(ctx context.Context, h *Handle, sensorEpanetIDs []string) (map[string]float64, error) {
	solveCtx, cancel := context.WithTimeout(ctx, SolveTimeout)
	defer cancel()

	type result struct {
		values map[string]float64
		err    error
	}
	done := make(chan result, 1)

	go func() {
		memo := make(map[string]float64)
		values := make(map[string]float64, len(sensorEpanetIDs))
		for _, s := range sensorEpanetIDs {
			v, err := subtreeDemand(h, s, memo, make(map[string]bool))
			if err != nil {
				done <- result{err: err}
				return
			}
			values[s] = v
		}
		done <- result{values: values}
	}()

	select {
	case <-solveCtx.Done():
		return nil, waterr.New(waterr.SimulationFailed, "steady-state solve exceeded timeout")
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if allInvalid(r.values) {
			return nil, waterr.New(waterr.NoValidReadings, "every sensor read returned NaN/Inf")
		}
		return r.values, nil
	}
}

func subtreeDemand(h *Handle, nodeID string, memo map[string]float64, visiting map[string]bool) (float64, error) {
	if v, ok := memo[nodeID]; ok {
		return v, nil
	}
	if visiting[nodeID] {
		return 0, waterr.Newf(waterr.SimulationFailed, "cycle detected in network topology at node %q", nodeID)
	}
	visiting[nodeID] = true

	total := h.demand[nodeID]
	for _, child := range h.children[nodeID] {
		v, err := subtreeDemand(h, child, memo, visiting)
		if err != nil {
			return 0, err
		}
		total += v
	}

	visiting[nodeID] = false
	memo[nodeID] = total
	return total, nil
}

func allInvalid(values map[string]float64) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
