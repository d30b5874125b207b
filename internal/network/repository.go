// Package network is the composition root for the data model spec §3
// describes: networks, their node hierarchy, DMA partitions, sensors,
// readings and sensitivity entries. It defines the persistence contract
// (Repository) and a Service that layers import/placement operations over
// it, mirroring the teacher's agency package split between
// internal/agency/repository.go (the interface) and internal/agency/service.go
// (the business logic that composes it).
package network

import (
	"context"
	"time"

	"github.com/aosanya/waterguard/internal/models"
)

// Repository is the persistence contract every entity in spec §3 needs.
// internal/network/arangodb implements it against ArangoDB.
type Repository interface {
	// Networks
	CreateNetwork(ctx context.Context, n *models.Network) error
	GetNetwork(ctx context.Context, networkID string) (*models.Network, error)
	ListNetworks(ctx context.Context) ([]*models.Network, error)

	// Nodes
	CreateNode(ctx context.Context, n *models.Node) error
	CreateNodes(ctx context.Context, nodes []*models.Node) error
	GetNode(ctx context.Context, networkID, nodeID string) (*models.Node, error)
	ListNodes(ctx context.Context, networkID string) ([]*models.Node, error)

	// Partitions
	CreatePartition(ctx context.Context, p *models.Partition) error
	ListPartitions(ctx context.Context, networkID string) ([]*models.Partition, error)
	GetPartition(ctx context.Context, networkID, partitionID string) (*models.Partition, error)

	// Sensors
	CreateSensor(ctx context.Context, s *models.Sensor) error
	GetSensor(ctx context.Context, networkID, sensorID string) (*models.Sensor, error)
	ListSensors(ctx context.Context, networkID string) ([]*models.Sensor, error)
	ListActiveSensors(ctx context.Context, networkID string) ([]*models.Sensor, error)

	// Readings
	CreateReadings(ctx context.Context, readings []*models.Reading) error
	ReadingsInWindow(ctx context.Context, networkID, sensorID string, from, to time.Time) ([]*models.Reading, error)

	// Sensitivity matrix
	ClearSensitivityEntries(ctx context.Context, networkID string) error
	UpsertSensitivityEntries(ctx context.Context, entries []*models.SensitivityEntry) error
	CountSensitivityEntries(ctx context.Context, networkID string) (int, error)
	SensitivityRow(ctx context.Context, networkID, leakNodeID string) (map[string]float64, error)
	SensitivityCandidates(ctx context.Context, networkID string) ([]string, error)

	// Leak detections
	CreateLeakDetection(ctx context.Context, d *models.LeakDetection) error
	GetLeakDetection(ctx context.Context, networkID, detectionID string) (*models.LeakDetection, error)
	UpdateLeakDetection(ctx context.Context, d *models.LeakDetection) error
	ListLeakDetections(ctx context.Context, networkID string) ([]*models.LeakDetection, error)
}
