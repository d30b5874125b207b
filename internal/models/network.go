package models

import "time"

// Network is the logical container tenanting every other entity.
type Network struct {
	Key       string    `json:"_key,omitempty"`
	ID        string    `json:"_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// StoragePath is the on-disk location of the imported .inp file,
	// e.g. "./storage/epanet/<networkId>.inp".
	StoragePath string `json:"storage_path,omitempty"`
}

// NodeType classifies a node's role in the hierarchy.
type NodeType string

const (
	NodeMainline  NodeType = "MAINLINE"
	NodeBranch    NodeType = "BRANCH"
	NodeJunction  NodeType = "JUNCTION"
	NodeHousehold NodeType = "HOUSEHOLD"
)

// Valid reports whether t is one of the four totality-checked node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeMainline, NodeBranch, NodeJunction, NodeHousehold:
		return true
	}
	return false
}

// Node is a vertex in the network's parent/child hierarchy.
type Node struct {
	Key           string   `json:"_key,omitempty"`
	ID            string   `json:"_id,omitempty"`
	NetworkID     string   `json:"network_id"`
	NodeID        string   `json:"node_id"`
	NodeType      NodeType `json:"node_type"`
	ParentID      string   `json:"parent_id,omitempty"`
	EpanetNodeID  string   `json:"epanet_node_id,omitempty"`
	Location      string   `json:"location,omitempty"`
}

// Partition is a District Metered Area: the subtree rooted at one mainline.
type Partition struct {
	Key         string `json:"_key,omitempty"`
	ID          string `json:"_id,omitempty"`
	NetworkID   string `json:"network_id"`
	PartitionID string `json:"partition_id"`
	MainlineID  string `json:"mainline_id"`
}

// SensorType classifies a flow meter.
type SensorType string

const (
	SensorMainlineFlow       SensorType = "MAINLINE_FLOW"
	SensorBranchJunctionFlow SensorType = "BRANCH_JUNCTION_FLOW"
	SensorHouseholdFlow      SensorType = "HOUSEHOLD_FLOW"
)

// Valid reports whether t is one of the three totality-checked sensor types.
func (t SensorType) Valid() bool {
	switch t {
	case SensorMainlineFlow, SensorBranchJunctionFlow, SensorHouseholdFlow:
		return true
	}
	return false
}

// Sensor is a flow meter attached to a node.
type Sensor struct {
	Key         string     `json:"_key,omitempty"`
	ID          string     `json:"_id,omitempty"`
	NetworkID   string     `json:"network_id"`
	SensorID    string     `json:"sensor_id"`
	SensorType  SensorType `json:"sensor_type"`
	NodeID      string     `json:"node_id"`
	PartitionID string     `json:"partition_id,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// ReadingSource identifies where a reading originated.
type ReadingSource string

const (
	ReadingSourceSensor ReadingSource = "SENSOR"
	ReadingSourceManual ReadingSource = "MANUAL"
)

// Reading is a single time-stamped flow sample.
type Reading struct {
	Key       string        `json:"_key,omitempty"`
	ID        string        `json:"_id,omitempty"`
	NetworkID string        `json:"network_id"`
	SensorID  string        `json:"sensor_id"`
	FlowValue float64       `json:"flow_value"`
	Timestamp time.Time     `json:"timestamp"`
	Source    ReadingSource `json:"source"`
}

// SensitivityEntry is one (candidate, sensor) cell of the sensitivity matrix.
type SensitivityEntry struct {
	Key               string  `json:"_key,omitempty"`
	ID                string  `json:"_id,omitempty"`
	NetworkID         string  `json:"network_id"`
	LeakNodeID        string  `json:"leak_node_id"`
	SensorID          string  `json:"sensor_id"`
	SensitivityValue  float64 `json:"sensitivity_value"`
}
