package reconcile

import (
	"sort"

	"github.com/malbeclabs/driftwatch/pkg/telemetry"
)

// UnknownLocation is the rollup bucket for links no source can place. It
// is a real bucket, never dropped from the output.
const UnknownLocation = "unknown"

// LocationResolver resolves a device public IP to a location label. The
// geoip package provides the production implementation.
type LocationResolver interface {
	Location(ip string) (string, error)
}

// locator resolves one location label per reconciled link. Resolution
// order: the A-side measured endpoint tag, the Z-side tag, the snapshot
// device index for either endpoint, GeoIP on a device public IP, then the
// unknown sentinel. The endpoints are canonically ordered before lookup,
// so the choice does not depend on reporting direction.
type locator struct {
	devices  map[string]telemetry.Device
	resolver LocationResolver
}

func newLocator(snapshot *telemetry.Snapshot, mapper DeviceMapper, resolver LocationResolver) *locator {
	devices := make(map[string]telemetry.Device, len(snapshot.Devices))
	for _, d := range snapshot.Devices {
		devices[mapper.Canonical(d.Hostname)] = d
	}
	return &locator{devices: devices, resolver: resolver}
}

func (l *locator) forMeasured(m *MeasuredLink) string {
	if m.LocationA != "" {
		return m.LocationA
	}
	if m.LocationZ != "" {
		return m.LocationZ
	}
	return l.forDevices(m.DeviceA, m.DeviceZ)
}

func (l *locator) forAdvertised(adv *AdvertisedLink) string {
	return l.forDevices(adv.DeviceA, adv.DeviceZ)
}

func (l *locator) forDevices(names ...string) string {
	for _, name := range names {
		if d, ok := l.devices[name]; ok && d.Location != "" {
			return d.Location
		}
	}
	if l.resolver != nil {
		for _, name := range names {
			d, ok := l.devices[name]
			if !ok || d.PublicIP == "" {
				continue
			}
			if loc, err := l.resolver.Location(d.PublicIP); err == nil && loc != "" {
				return loc
			}
		}
	}
	return UnknownLocation
}

// rollupLocations buckets the topology per location. Every row lands in
// exactly one bucket, so the per-location summaries sum to the global one.
func rollupLocations(topology []ReconciledLink) []LocationRollup {
	byLocation := make(map[string]*LocationRollup)
	for _, row := range topology {
		r, ok := byLocation[row.Location]
		if !ok {
			r = &LocationRollup{Location: row.Location}
			byLocation[row.Location] = r
		}
		r.add(row.Health)
	}

	names := make([]string, 0, len(byLocation))
	for name := range byLocation {
		names = append(names, name)
	}
	sort.Strings(names)

	rollups := make([]LocationRollup, 0, len(names))
	for _, name := range names {
		rollups = append(rollups, *byLocation[name])
	}
	return rollups
}
