package reconcile

import "math"

// DefaultDriftThresholdMs is the tolerated absolute drift in milliseconds
// when no threshold is configured.
const DefaultDriftThresholdMs = 10.0

// Comparator decides whether a measured latency agrees with an advertised
// metric. Both inputs are microseconds; the returned drift is milliseconds
// so it reads naturally next to the threshold.
type Comparator interface {
	Compare(advertisedUS, measuredUS float64) (driftMs float64, healthy bool)
}

// AbsoluteComparator classifies on absolute drift against a millisecond
// threshold. Drift exactly at the threshold is healthy; only strictly
// above trips drift_high. A zero ThresholdMs means
// DefaultDriftThresholdMs.
type AbsoluteComparator struct {
	ThresholdMs float64
}

func (c AbsoluteComparator) Compare(advertisedUS, measuredUS float64) (float64, bool) {
	threshold := c.ThresholdMs
	if threshold <= 0 {
		threshold = DefaultDriftThresholdMs
	}
	driftMs := math.Abs(measuredUS-advertisedUS) / 1000.0
	return driftMs, driftMs <= threshold
}

// RatioComparator classifies on the measured/advertised ratio rather than
// absolute drift, which tolerates proportionally more slack on long links.
// The reported drift stays the absolute difference so numbers remain
// comparable across strategies. Zero bounds default to 0.5 and 2.0.
type RatioComparator struct {
	MinRatio float64
	MaxRatio float64
}

func (c RatioComparator) Compare(advertisedUS, measuredUS float64) (float64, bool) {
	minRatio := c.MinRatio
	if minRatio <= 0 {
		minRatio = 0.5
	}
	maxRatio := c.MaxRatio
	if maxRatio <= 0 {
		maxRatio = 2.0
	}
	driftMs := math.Abs(measuredUS-advertisedUS) / 1000.0
	if advertisedUS == 0 {
		return driftMs, measuredUS == 0
	}
	ratio := measuredUS / advertisedUS
	return driftMs, ratio >= minRatio && ratio <= maxRatio
}
