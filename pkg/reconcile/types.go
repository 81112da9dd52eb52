package reconcile

// Health classifies one reconciled link. The four values are mutually
// exclusive and every reconciled link carries exactly one of them.
type Health string

const (
	// HealthHealthy means both planes agree within the drift threshold.
	HealthHealthy Health = "healthy"
	// HealthDriftHigh means both planes report the link but the measured
	// latency drifts beyond the threshold from the advertised metric.
	HealthDriftHigh Health = "drift_high"
	// HealthMissingISIS means the link was measured but no advertisement
	// covers its device pair.
	HealthMissingISIS Health = "missing_isis"
	// HealthMissingTelemetry means the link was advertised but no
	// measurement covers its device pair.
	HealthMissingTelemetry Health = "missing_telemetry"
)

// Valid reports whether h is one of the four health values.
func (h Health) Valid() bool {
	switch h {
	case HealthHealthy, HealthDriftHigh, HealthMissingISIS, HealthMissingTelemetry:
		return true
	}
	return false
}

// AdvertisedLink is one control-plane adjacency, merged across the two
// advertisement directions and across instances and levels.
type AdvertisedLink struct {
	Pair     string
	DeviceA  string
	DeviceZ  string
	VRF      string
	MetricUS uint32
	Instance string
	Level    int
	LSPIDs   []string
}

// MeasuredLink is one data-plane link, merged across directional samples.
// The A side is the lexicographically lower canonical device name.
type MeasuredLink struct {
	Key               LinkKey
	DeviceA           string
	DeviceZ           string
	InterfaceA        string
	InterfaceZ        string
	LocationA         string
	LocationZ         string
	VRF               string
	LatencyUS         float64
	LossPercent       float64
	UtilizationInBps  int64
	UtilizationOutBps int64
	Observations      int
}

// merge folds another directional sample of the same physical link in.
// Every rule is commutative so the result does not depend on sample order:
// latency keeps the lower side, loss and utilization keep the worse side,
// a location conflict resolves lexicographically.
func (m *MeasuredLink) merge(other *MeasuredLink) {
	if other.LatencyUS < m.LatencyUS {
		m.LatencyUS = other.LatencyUS
	}
	if other.LossPercent > m.LossPercent {
		m.LossPercent = other.LossPercent
	}
	if other.UtilizationInBps > m.UtilizationInBps {
		m.UtilizationInBps = other.UtilizationInBps
	}
	if other.UtilizationOutBps > m.UtilizationOutBps {
		m.UtilizationOutBps = other.UtilizationOutBps
	}
	m.LocationA = mergeLocation(m.LocationA, other.LocationA)
	m.LocationZ = mergeLocation(m.LocationZ, other.LocationZ)
	m.Observations += other.Observations
}

func mergeLocation(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b < a {
		return b
	}
	return a
}

// ReconciledLink is one row of the reconciled topology. Measured-side
// fields are nil on missing_telemetry rows and advertised-side fields are
// nil on missing_isis rows.
type ReconciledLink struct {
	Key                string   `json:"key"`
	DeviceA            string   `json:"device_a"`
	DeviceZ            string   `json:"device_z"`
	InterfaceA         string   `json:"interface_a,omitempty"`
	InterfaceZ         string   `json:"interface_z,omitempty"`
	VRF                string   `json:"vrf"`
	Health             Health   `json:"health"`
	Location           string   `json:"location"`
	MeasuredLatencyUS  *float64 `json:"measured_latency_us,omitempty"`
	LossPercent        *float64 `json:"loss_percent,omitempty"`
	AdvertisedMetricUS *uint32  `json:"advertised_metric_us,omitempty"`
	DriftMS            *float64 `json:"drift_ms,omitempty"`
	LSPIDs             []string `json:"lsp_ids,omitempty"`
}

// Summary counts links per health bucket. The four buckets always sum to
// TotalLinks.
type Summary struct {
	TotalLinks       int `json:"total_links"`
	Healthy          int `json:"healthy"`
	DriftHigh        int `json:"drift_high"`
	MissingISIS      int `json:"missing_isis"`
	MissingTelemetry int `json:"missing_telemetry"`
}

func (s *Summary) add(h Health) {
	s.TotalLinks++
	switch h {
	case HealthHealthy:
		s.Healthy++
	case HealthDriftHigh:
		s.DriftHigh++
	case HealthMissingISIS:
		s.MissingISIS++
	case HealthMissingTelemetry:
		s.MissingTelemetry++
	}
}

// LocationRollup is the per-location health summary.
type LocationRollup struct {
	Location string `json:"location"`
	Summary
}

// Diagnostics carries the skip counters from both extractions so a
// degraded parse is visible next to the counts it may have shifted.
type Diagnostics struct {
	SkippedInstances int  `json:"skipped_instances,omitempty"`
	SkippedLevels    int  `json:"skipped_levels,omitempty"`
	SkippedLSPs      int  `json:"skipped_lsps,omitempty"`
	SkippedNeighbors int  `json:"skipped_neighbors,omitempty"`
	SkippedLinks     int  `json:"skipped_links,omitempty"`
	SkippedDevices   int  `json:"skipped_devices,omitempty"`
	Degraded         bool `json:"degraded"`
}

// Result is the full output of one reconciliation run.
type Result struct {
	Topology    []ReconciledLink `json:"topology"`
	Locations   []LocationRollup `json:"locations"`
	Summary     Summary          `json:"summary"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}
