package reconcile

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/driftwatch/pkg/isis"
	"github.com/malbeclabs/driftwatch/pkg/telemetry"
)

// Options configures one reconciliation run. The zero value is usable:
// default comparator, default threshold, document-derived device mapping,
// no external location resolver.
type Options struct {
	// DriftThresholdMs is the tolerated absolute drift in milliseconds.
	// Zero means DefaultDriftThresholdMs. Ignored when Comparator is set.
	DriftThresholdMs float64
	// Comparator overrides the drift strategy.
	Comparator Comparator
	// Mapper overrides device canonicalization. When nil, a layered
	// mapper is built from DeviceOverrides plus the IS-IS document's own
	// hostname advertisements.
	Mapper DeviceMapper
	// DeviceOverrides maps raw identifiers to canonical names. Only used
	// when Mapper is nil.
	DeviceOverrides map[string]string
	// Locations resolves a device public IP to a location label when
	// neither document carries one.
	Locations LocationResolver
}

// Reconcile parses both documents, projects them onto the shared link
// keyspace, and joins them into a classified topology.
//
// The two documents parse in parallel; the join waits for both and fails
// outright if either parse failed, so a malformed document surfaces as an
// error instead of a wall of missing links. Runs share no mutable state:
// repeated or concurrent calls with permuted inputs yield identical
// results.
func Reconcile(ctx context.Context, snapshotJSON, isisJSON []byte, opts Options) (*Result, error) {
	comparator := opts.Comparator
	if comparator == nil {
		comparator = AbsoluteComparator{ThresholdMs: opts.DriftThresholdMs}
	}

	var (
		snapshot  *telemetry.Snapshot
		snapStats telemetry.Stats
		lsps      []isis.LSP
		isisStats isis.Stats
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		snapshot, snapStats, err = telemetry.Parse(snapshotJSON)
		if err != nil {
			return fmt.Errorf("failed to parse telemetry snapshot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lsps, isisStats, err = isis.Parse(isisJSON)
		if err != nil {
			return fmt.Errorf("failed to parse IS-IS database: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mapper := opts.Mapper
	if mapper == nil {
		layered := NewDeviceMapper(opts.DeviceOverrides)
		layered.IndexLSPs(lsps)
		mapper = layered
	}

	measured := ExtractMeasured(snapshot, mapper)
	advertised := ExtractAdvertised(lsps, mapper)

	result := join(measured, advertised, comparator, newLocator(snapshot, mapper, opts.Locations))
	result.Diagnostics = Diagnostics{
		SkippedInstances: isisStats.SkippedInstances,
		SkippedLevels:    isisStats.SkippedLevels,
		SkippedLSPs:      isisStats.SkippedLSPs,
		SkippedNeighbors: isisStats.SkippedNeighbors,
		SkippedLinks:     snapStats.SkippedLinks,
		SkippedDevices:   snapStats.SkippedDevices,
		Degraded:         isisStats.Degraded() || snapStats.Degraded(),
	}
	return result, nil
}

// join runs the hash outer join between the measured and advertised maps.
// One pass over each side, O(measured + advertised). An advertisement
// matches every measured link sharing its pair key, so parallel links are
// each classified on their own latency; an advertisement no measured link
// matches surfaces exactly once as missing_telemetry.
func join(measured map[LinkKey]*MeasuredLink, advertised map[string]*AdvertisedLink, comparator Comparator, locate *locator) *Result {
	topology := make([]ReconciledLink, 0, len(measured))
	matched := make(map[string]bool, len(advertised))

	for key, m := range measured {
		latency := m.LatencyUS
		loss := m.LossPercent
		row := ReconciledLink{
			Key:               key.String(),
			DeviceA:           m.DeviceA,
			DeviceZ:           m.DeviceZ,
			InterfaceA:        m.InterfaceA,
			InterfaceZ:        m.InterfaceZ,
			VRF:               m.VRF,
			Location:          locate.forMeasured(m),
			MeasuredLatencyUS: &latency,
			LossPercent:       &loss,
		}
		if adv, ok := advertised[key.Pair]; ok {
			matched[key.Pair] = true
			metric := adv.MetricUS
			drift, healthy := comparator.Compare(float64(adv.MetricUS), m.LatencyUS)
			row.AdvertisedMetricUS = &metric
			row.DriftMS = &drift
			row.LSPIDs = adv.LSPIDs
			if healthy {
				row.Health = HealthHealthy
			} else {
				row.Health = HealthDriftHigh
			}
		} else {
			row.Health = HealthMissingISIS
		}
		topology = append(topology, row)
	}

	for pair, adv := range advertised {
		if matched[pair] {
			continue
		}
		metric := adv.MetricUS
		topology = append(topology, ReconciledLink{
			Key:                adv.Pair,
			DeviceA:            adv.DeviceA,
			DeviceZ:            adv.DeviceZ,
			VRF:                adv.VRF,
			Health:             HealthMissingTelemetry,
			Location:           locate.forAdvertised(adv),
			AdvertisedMetricUS: &metric,
			LSPIDs:             adv.LSPIDs,
		})
	}

	// Map iteration order leaks in above; a final sort restores the
	// deterministic output the caller is promised.
	sort.Slice(topology, func(i, j int) bool {
		return topology[i].Key < topology[j].Key
	})

	result := &Result{Topology: topology}
	for _, row := range topology {
		result.Summary.add(row.Health)
	}
	result.Locations = rollupLocations(topology)
	return result
}
