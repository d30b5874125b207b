// Package analysis implements the Analysis Orchestrator (spec §4.G): the
// end-to-end path from a simultaneous reading batch to a composed report,
// running detection then, per detection, localization with catch-log-
// continue semantics.
package analysis

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aosanya/waterguard/internal/detection"
	"github.com/aosanya/waterguard/internal/localization"
	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/network"
	"github.com/aosanya/waterguard/internal/waterr"
)

// Orchestrator composes detection + localization over an ingest batch.
type Orchestrator struct {
	repo   network.Repository
	detect *detection.Detector
	locate *localization.Localizer
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(repo network.Repository, detect *detection.Detector, locate *localization.Localizer) *Orchestrator {
	return &Orchestrator{repo: repo, detect: detect, locate: locate}
}

// DetectionEntry is one detection's report row, with an optional
// localization block when localization succeeded for it.
type DetectionEntry struct {
	Detection    *models.LeakDetection
	Localization *localization.Result
}

// Summary aggregates a report's detections by severity.
type Summary struct {
	Total             int
	Localized         int
	SeverityBreakdown map[models.Severity]int
}

// Report is the response shape of spec §6's POST /leaks/analyze.
type Report struct {
	Timestamp      time.Time
	ReadingsStored int
	Detections     []DetectionEntry
	Summary        Summary
}

// Analyze implements spec §4.G's analyze(timestamp, readings[]).
func (o *Orchestrator) Analyze(ctx context.Context, networkID string, timestamp time.Time, readings []*models.Reading) (*Report, error) {
	if len(readings) == 0 {
		return nil, waterr.New(waterr.InvalidInput, "readings must not be empty")
	}
	if timestamp.IsZero() {
		return nil, waterr.New(waterr.InvalidInput, "timestamp is required")
	}

	sensors, err := o.repo.ListSensors(ctx, networkID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(sensors))
	for _, s := range sensors {
		known[s.SensorID] = true
	}
	var missing []string
	for _, r := range readings {
		if !known[r.SensorID] {
			missing = append(missing, r.SensorID)
		}
	}
	if len(missing) > 0 {
		return nil, waterr.Newf(waterr.NotFound, "unknown sensor ids: %v", missing)
	}

	for _, r := range readings {
		r.NetworkID = networkID
		r.Timestamp = timestamp
		r.Source = models.ReadingSourceSensor
	}
	if err := o.repo.CreateReadings(ctx, readings); err != nil {
		return nil, err
	}

	detections, err := o.detect.Detect(ctx, detection.Request{
		NetworkID: networkID,
		Timestamp: timestamp,
		Threshold: detection.DefaultThreshold,
		Window:    detection.DefaultWindow,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]DetectionEntry, 0, len(detections))
	breakdown := make(map[models.Severity]int)
	localizedCount := 0
	for _, d := range detections {
		entry := DetectionEntry{Detection: d}
		result, err := o.locate.Localize(ctx, d, 3600*time.Second)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"network_id": networkID,
				"node_id":    d.NodeID,
			}).Warn("localization failed for detection, reporting without a localization block")
		} else {
			entry.Localization = result
			localizedCount++
		}
		breakdown[d.Severity]++
		entries = append(entries, entry)
	}

	return &Report{
		Timestamp:      timestamp,
		ReadingsStored: len(readings),
		Detections:     entries,
		Summary: Summary{
			Total:             len(entries),
			Localized:         localizedCount,
			SeverityBreakdown: breakdown,
		},
	}, nil
}
