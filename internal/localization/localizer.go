// Package localization implements the Localization Engine (spec §4.F): it
// builds the observed sensor-change vector, scores every sensitivity-matrix
// candidate against it with a blended RSS/Pearson score, ranks them, and
// writes the winner back onto the triggering LeakDetection.
//
// The scoring math (RSS, Pearson correlation, deterministic tie-breaking)
// has no counterpart in the teacher's or pack's dependency set — no example
// repo imports a stats/linear-algebra library for anything resembling this,
// so it is implemented directly against math.Sqrt/math.Abs (see DESIGN.md).
package localization

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/network"
	"github.com/aosanya/waterguard/internal/topology"
	"github.com/aosanya/waterguard/internal/waterr"
)

// DefaultBaselineWindow is spec §4.F's default baseline window.
const DefaultBaselineWindow = 3600 * time.Second

// tieEpsilon is spec §4.F's deterministic tie-break tolerance.
const tieEpsilon = 1e-12

// Localizer scores leak-detection candidates against a network's
// precomputed sensitivity matrix.
type Localizer struct {
	repo network.Repository
	topo *topology.Service
}

// NewLocalizer constructs a Localizer.
func NewLocalizer(repo network.Repository, topo *topology.Service) *Localizer {
	return &Localizer{repo: repo, topo: topo}
}

// Candidate is one ranked scoring result.
type Candidate struct {
	NodeID string
	Score  float64
}

// Result is the outcome of one localization run.
type Result struct {
	WinnerNodeID string
	Score        float64
	TopCandidates []Candidate
}

// Localize implements spec §4.F over detection (which must already be
// persisted with a network_id, timestamp and flow_imbalance), writing the
// winner back onto it and transitioning its status to LOCALIZED.
func (l *Localizer) Localize(ctx context.Context, detection *models.LeakDetection, baselineWindow time.Duration) (*Result, error) {
	if baselineWindow == 0 {
		baselineWindow = DefaultBaselineWindow
	}
	detectionWindow := time.Duration(detection.TimeWindow) * time.Second
	if detectionWindow == 0 {
		detectionWindow = 300 * time.Second
	}
	T := detection.Timestamp

	sensors, err := l.repo.ListSensors(ctx, detection.NetworkID)
	if err != nil {
		return nil, err
	}

	observed := make(map[string]float64)
	for _, s := range sensors {
		baseline, baselineOK, err := l.meanInWindow(ctx, detection.NetworkID, s.SensorID, T.Add(-detectionWindow-baselineWindow), T.Add(-detectionWindow))
		if err != nil {
			return nil, err
		}
		if !baselineOK {
			continue
		}
		recent, recentOK, err := l.meanInWindow(ctx, detection.NetworkID, s.SensorID, T.Add(-detectionWindow), T)
		if err != nil {
			return nil, err
		}
		if !recentOK {
			continue
		}
		observed[s.SensorID] = recent - baseline
	}

	candidateIDs, err := l.repo.SensitivityCandidates(ctx, detection.NetworkID)
	if err != nil {
		return nil, err
	}
	if detection.PartitionID != "" {
		dmaNodes, err := l.topo.NodesInDMA(ctx, detection.NetworkID, detection.PartitionID)
		if err != nil {
			return nil, err
		}
		var restricted []string
		for _, c := range candidateIDs {
			if _, ok := dmaNodes[c]; ok {
				restricted = append(restricted, c)
			}
		}
		candidateIDs = restricted
	}

	var scored []Candidate
	for _, c := range candidateIDs {
		row, err := l.repo.SensitivityRow(ctx, detection.NetworkID, c)
		if err != nil {
			return nil, err
		}
		score, n := scoreCandidate(row, observed, detection.FlowImbalance)
		if n == 0 {
			continue
		}
		scored = append(scored, Candidate{NodeID: c, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if math.Abs(scored[i].Score-scored[j].Score) < tieEpsilon {
			return scored[i].NodeID < scored[j].NodeID
		}
		return scored[i].Score > scored[j].Score
	})

	if len(scored) == 0 || scored[0].Score <= 0 {
		return nil, waterr.New(waterr.LocalizationUndetermined, "no candidate could be scored against the observed change vector")
	}

	top := scored
	if len(top) > 10 {
		top = top[:10]
	}

	now := time.Now()
	if err := detection.Localize(scored[0].NodeID, scored[0].Score, now); err != nil {
		return nil, err
	}
	if err := l.repo.UpdateLeakDetection(ctx, detection); err != nil {
		return nil, err
	}

	return &Result{WinnerNodeID: scored[0].NodeID, Score: scored[0].Score, TopCandidates: top}, nil
}

func (l *Localizer) meanInWindow(ctx context.Context, networkID, sensorID string, from, to time.Time) (float64, bool, error) {
	readings, err := l.repo.ReadingsInWindow(ctx, networkID, sensorID, from, to)
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

// scoreCandidate implements spec §4.F step 5: a blend of an RSS-derived
// score and the Pearson correlation between observed and predicted change,
// over the sensors with a non-zero predicted or observed change. Returns
// the sensor count N so callers can exclude empty-support candidates.
func scoreCandidate(sensitivityRow map[string]float64, observed map[string]float64, imbalance float64) (float64, int) {
	var o, p []float64
	for sensorID, oVal := range observed {
		pVal := sensitivityRow[sensorID] * imbalance
		if oVal == 0 && pVal == 0 {
			continue
		}
		o = append(o, oVal)
		p = append(p, pVal)
	}
	n := len(o)
	if n == 0 {
		return 0, 0
	}

	var rss, sumOSq, sumPSq float64
	for i := range o {
		d := o[i] - p[i]
		rss += d * d
		sumOSq += o[i] * o[i]
		sumPSq += p[i] * p[i]
	}
	rss /= float64(n)
	rssScore := 1.0 / (1.0 + rss)
	if math.IsNaN(rss) || math.IsInf(rss, 0) {
		rssScore = 0
	}

	if sumOSq <= 0 || sumPSq <= 0 {
		return rssScore, n
	}

	rho := pearson(o, p)
	score := 0.5*rssScore + 0.25*(rho+1)
	return score, n
}

// pearson returns the Pearson correlation of o and p with means removed,
// guarding against zero variance on either side per spec §9's numerical
// stability note.
func pearson(o, p []float64) float64 {
	n := float64(len(o))
	if n == 0 {
		return 0
	}
	var meanO, meanP float64
	for i := range o {
		meanO += o[i]
		meanP += p[i]
	}
	meanO /= n
	meanP /= n

	var cov, varO, varP float64
	for i := range o {
		dO := o[i] - meanO
		dP := p[i] - meanP
		cov += dO * dP
		varO += dO * dO
		varP += dP * dP
	}
	if varO <= 0 || varP <= 0 {
		return 0
	}
	return cov / math.Sqrt(varO*varP)
}
