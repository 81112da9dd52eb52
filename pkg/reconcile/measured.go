package reconcile

import (
	"github.com/malbeclabs/driftwatch/pkg/telemetry"
)

// ExtractMeasured projects snapshot links into measured links keyed by
// pair and interface qualifier. The two reporting directions of one
// physical link merge onto one key; parallel links between the same
// device pair on different interfaces stay distinct.
func ExtractMeasured(snapshot *telemetry.Snapshot, mapper DeviceMapper) map[LinkKey]*MeasuredLink {
	links := make(map[LinkKey]*MeasuredLink, len(snapshot.Links))
	for _, l := range snapshot.Links {
		vrf := l.VRF
		if vrf == "" {
			vrf = DefaultVRF
		}
		local := mapper.Canonical(l.LocalDevice)
		remote := mapper.Canonical(l.RemoteDevice)
		key := NewLinkKey(vrf, local, l.LocalInterface, remote, l.RemoteInterface)

		m := &MeasuredLink{
			Key:               key,
			DeviceA:           local,
			DeviceZ:           remote,
			InterfaceA:        l.LocalInterface,
			InterfaceZ:        l.RemoteInterface,
			LocationA:         l.LocalLocation,
			LocationZ:         l.RemoteLocation,
			VRF:               vrf,
			LatencyUS:         l.LatencyUS,
			LossPercent:       l.LossPercent,
			UtilizationInBps:  l.UtilizationInBps,
			UtilizationOutBps: l.UtilizationOutBps,
			Observations:      1,
		}
		// Match the side swap NewLinkKey applied.
		if remote < local || (remote == local && l.RemoteInterface < l.LocalInterface) {
			m.DeviceA, m.DeviceZ = m.DeviceZ, m.DeviceA
			m.InterfaceA, m.InterfaceZ = m.InterfaceZ, m.InterfaceA
			m.LocationA, m.LocationZ = m.LocationZ, m.LocationA
		}

		if existing, ok := links[key]; ok {
			existing.merge(m)
			continue
		}
		links[key] = m
	}
	return links
}
