// Package arangodb implements network.Repository against ArangoDB, one
// collection per entity in spec §3, following the ensure-collection-then-
// CRUD idiom of the teacher's internal/agency/arangodb package. Unlike the
// teacher, which opens one database per agency, every network shares the
// single database internal/database.ArangoClient opens (SPEC_FULL.md §9):
// entities are tenanted by a network_id field rather than by database.
package arangodb

import (
	"context"
	"fmt"

	driver "github.com/arangodb/go-driver"
)

const (
	collNetworks          = "networks"
	collNodes             = "nodes"
	collPartitions        = "partitions"
	collSensors           = "sensors"
	collReadings          = "readings"
	collSensitivityEntries = "sensitivity_entries"
	collLeakDetections    = "leak_detections"
)

// Repository implements network.Repository against a single ArangoDB
// database, mirroring the teacher's Repository{client driver.Client} shape.
type Repository struct {
	db driver.Database
}

// NewRepository constructs a Repository over an already-opened database.
func NewRepository(db driver.Database) *Repository {
	return &Repository{db: db}
}

// ensureCollection returns the named collection, creating it if absent.
func ensureCollection(ctx context.Context, db driver.Database, name string) (driver.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	if exists {
		return db.Collection(ctx, name)
	}
	return db.CreateCollection(ctx, name, nil)
}

func (r *Repository) collection(ctx context.Context, name string) (driver.Collection, error) {
	return ensureCollection(ctx, r.db, name)
}
