package models

import (
	"time"

	"github.com/aosanya/waterguard/internal/waterr"
)

// Severity classifies the magnitude of a detected imbalance.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFor returns the severity bucket for imbalance, per the table in
// spec §4.E. It does not check the detection threshold: any imbalance of
// 10 or less is LOW, so callers must have already confirmed
// imbalance > theta.
func SeverityFor(imbalance float64) Severity {
	switch {
	case imbalance > 50:
		return SeverityCritical
	case imbalance > 20:
		return SeverityHigh
	case imbalance > 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// DetectionStatus is the lifecycle state of a LeakDetection.
type DetectionStatus string

const (
	StatusDetected     DetectionStatus = "DETECTED"
	StatusConfirmed    DetectionStatus = "CONFIRMED"
	StatusLocalized    DetectionStatus = "LOCALIZED"
	StatusResolved     DetectionStatus = "RESOLVED"
	StatusFalsePositive DetectionStatus = "FALSE_POSITIVE"
)

// LeakDetection records a single mass-balance imbalance event and its
// lifecycle through confirmation, localization and resolution.
type LeakDetection struct {
	Key             string          `json:"_key,omitempty"`
	ID              string          `json:"_id,omitempty"`
	NetworkID       string          `json:"network_id"`
	NodeID          string          `json:"node_id"`
	PartitionID     string          `json:"partition_id,omitempty"`
	FlowImbalance   float64         `json:"flow_imbalance"`
	Severity        Severity        `json:"severity"`
	Status          DetectionStatus `json:"status"`
	DetectedAt      time.Time       `json:"detected_at"`
	Timestamp       time.Time       `json:"timestamp"`
	TimeWindow      float64         `json:"time_window,omitempty"`
	Threshold       float64         `json:"threshold,omitempty"`

	LocalizedNodeID   string     `json:"localized_node_id,omitempty"`
	LocalizationScore float64    `json:"localization_score,omitempty"`
	LocalizedAt       *time.Time `json:"localized_at,omitempty"`
}

// NewLeakDetection constructs a DETECTED record with severity assigned
// immutably at creation time, per spec §3.
func NewLeakDetection(networkID, nodeID, partitionID string, imbalance, threshold, window float64, ts, now time.Time) *LeakDetection {
	return &LeakDetection{
		NetworkID:     networkID,
		NodeID:        nodeID,
		PartitionID:   partitionID,
		FlowImbalance: imbalance,
		Severity:      SeverityFor(imbalance),
		Status:        StatusDetected,
		DetectedAt:    now,
		Timestamp:     ts,
		TimeWindow:    window,
		Threshold:     threshold,
	}
}

// Localize transitions DETECTED -> LOCALIZED, recording the winning
// candidate. Allowed only from DETECTED per spec §3.
func (d *LeakDetection) Localize(nodeID string, score float64, now time.Time) error {
	if d.Status != StatusDetected {
		return waterr.Newf(waterr.InvariantViolation, "cannot localize detection in status %s", d.Status)
	}
	d.LocalizedNodeID = nodeID
	d.LocalizationScore = score
	t := now
	d.LocalizedAt = &t
	d.Status = StatusLocalized
	return nil
}

// Confirm transitions DETECTED -> CONFIRMED.
func (d *LeakDetection) Confirm() error {
	if d.Status != StatusDetected {
		return waterr.Newf(waterr.InvariantViolation, "cannot confirm detection in status %s", d.Status)
	}
	d.Status = StatusConfirmed
	return nil
}

// Resolve transitions any status -> RESOLVED.
func (d *LeakDetection) Resolve() error {
	d.Status = StatusResolved
	return nil
}

// Reject transitions any status -> FALSE_POSITIVE.
func (d *LeakDetection) Reject() error {
	d.Status = StatusFalsePositive
	return nil
}
