package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonLink mirrors Link for decoding. LatencyUS is a pointer so a link
// that omits the measurement can be told apart from an explicit zero.
type jsonLink struct {
	LocalDevice       string   `json:"local_device"`
	LocalInterface    string   `json:"local_interface"`
	RemoteDevice      string   `json:"remote_device"`
	RemoteInterface   string   `json:"remote_interface"`
	LatencyUS         *float64 `json:"latency_us"`
	LossPercent       float64  `json:"loss_percent"`
	UtilizationInBps  int64    `json:"utilization_in_bps"`
	UtilizationOutBps int64    `json:"utilization_out_bps"`
	LocalLocation     string   `json:"local_location"`
	RemoteLocation    string   `json:"remote_location"`
	VRF               string   `json:"vrf"`
}

// Parse parses a raw telemetry snapshot document.
//
// A document that is not a JSON object or has no "links" field is a hard
// error. Individual links that do not decode or lack the device, interface,
// or latency fields are skipped and counted in Stats; an empty "links"
// array is valid and yields an empty snapshot.
func Parse(data []byte) (*Snapshot, Stats, error) {
	var stats Stats

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, stats, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	rawLinks, ok := top["links"]
	if !ok {
		return nil, stats, fmt.Errorf("missing required field %q", "links")
	}

	var rawLinkList []json.RawMessage
	if err := json.Unmarshal(rawLinks, &rawLinkList); err != nil {
		return nil, stats, fmt.Errorf("field %q is not an array of links: %w", "links", err)
	}

	snapshot := &Snapshot{}

	if rawEpoch, ok := top["epoch"]; ok {
		if err := json.Unmarshal(rawEpoch, &snapshot.Epoch); err != nil {
			return nil, stats, fmt.Errorf("field %q is not a number: %w", "epoch", err)
		}
	}
	if rawCollectedAt, ok := top["collected_at"]; ok {
		var collectedAt time.Time
		if err := json.Unmarshal(rawCollectedAt, &collectedAt); err != nil {
			return nil, stats, fmt.Errorf("field %q is not a timestamp: %w", "collected_at", err)
		}
		snapshot.CollectedAt = collectedAt
	}

	if rawDevices, ok := top["devices"]; ok {
		var rawDeviceList []json.RawMessage
		if err := json.Unmarshal(rawDevices, &rawDeviceList); err != nil {
			return nil, stats, fmt.Errorf("field %q is not an array of devices: %w", "devices", err)
		}
		for _, raw := range rawDeviceList {
			var d Device
			if err := json.Unmarshal(raw, &d); err != nil || d.Hostname == "" {
				stats.SkippedDevices++
				continue
			}
			stats.Devices++
			snapshot.Devices = append(snapshot.Devices, d)
		}
	}

	for _, raw := range rawLinkList {
		var jl jsonLink
		if err := json.Unmarshal(raw, &jl); err != nil {
			stats.SkippedLinks++
			continue
		}
		if jl.LocalDevice == "" || jl.RemoteDevice == "" || jl.LocalInterface == "" || jl.LatencyUS == nil {
			stats.SkippedLinks++
			continue
		}
		stats.Links++
		snapshot.Links = append(snapshot.Links, Link{
			LocalDevice:       jl.LocalDevice,
			LocalInterface:    jl.LocalInterface,
			RemoteDevice:      jl.RemoteDevice,
			RemoteInterface:   jl.RemoteInterface,
			LatencyUS:         *jl.LatencyUS,
			LossPercent:       jl.LossPercent,
			UtilizationInBps:  jl.UtilizationInBps,
			UtilizationOutBps: jl.UtilizationOutBps,
			LocalLocation:     jl.LocalLocation,
			RemoteLocation:    jl.RemoteLocation,
			VRF:               jl.VRF,
		})
	}

	return snapshot, stats, nil
}
