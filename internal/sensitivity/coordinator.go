package sensitivity

import (
	"math"
	"sync"
)

// State is the lifecycle of one network's matrix build.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Progress reports a build's live completion, per spec §4.D.
type Progress struct {
	Processed  int `json:"processed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Stats reports the shape of a completed matrix.
type Stats struct {
	TotalEntries int `json:"totalEntries"`
}

// Status is the value generate()/status() return, per spec §4.D.
type Status struct {
	State    State     `json:"state"`
	Progress *Progress `json:"progress,omitempty"`
	Stats    *Stats    `json:"stats,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BuildCoordinator is the process-wide singleton spec §9 calls for:
// "encapsulate in a single BuildCoordinator whose only mutator is the build
// loop; readers see an immutable snapshot via copy." One status per network,
// guarded by a single RWMutex, mirroring the map-plus-RWMutex shape of the
// teacher's pool.Manager.
type BuildCoordinator struct {
	mu       sync.RWMutex
	statuses map[string]*Status
}

// NewBuildCoordinator constructs an empty coordinator.
func NewBuildCoordinator() *BuildCoordinator {
	return &BuildCoordinator{statuses: make(map[string]*Status)}
}

// Get returns a copy of networkID's current status, or a zero-value
// not_started status if no build has ever been attempted this process.
func (c *BuildCoordinator) Get(networkID string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.statuses[networkID]
	if !ok {
		return Status{State: StateNotStarted}
	}
	return copyStatus(st)
}

// Start records networkID's build as in_progress with the given candidate
// total, returning false without mutating if a build is already in_progress.
func (c *BuildCoordinator) Start(networkID string, total int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.statuses[networkID]; ok && st.State == StateInProgress {
		return false
	}
	c.statuses[networkID] = &Status{
		State:    StateInProgress,
		Progress: &Progress{Total: total},
	}
	return true
}

// UpdateProgress records processed candidates out of the build's total.
func (c *BuildCoordinator) UpdateProgress(networkID string, processed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[networkID]
	if !ok || st.Progress == nil {
		return
	}
	st.Progress.Processed = processed
	if st.Progress.Total > 0 {
		st.Progress.Percentage = int(math.Round(float64(processed) / float64(st.Progress.Total) * 100.0))
	}
}

// Complete marks networkID's build as completed with the given entry count.
func (c *BuildCoordinator) Complete(networkID string, totalEntries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[networkID] = &Status{
		State: StateCompleted,
		Stats: &Stats{TotalEntries: totalEntries},
	}
}

// Fail marks networkID's build as failed with err's message.
func (c *BuildCoordinator) Fail(networkID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[networkID] = &Status{State: StateError, Error: err.Error()}
}

func copyStatus(st *Status) Status {
	out := Status{State: st.State, Error: st.Error}
	if st.Progress != nil {
		p := *st.Progress
		out.Progress = &p
	}
	if st.Stats != nil {
		s := *st.Stats
		out.Stats = &s
	}
	return out
}
