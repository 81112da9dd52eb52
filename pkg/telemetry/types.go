package telemetry

import "time"

// Device is a network device present in a telemetry snapshot.
type Device struct {
	Hostname string `json:"hostname"`
	Location string `json:"location,omitempty"`
	PublicIP string `json:"public_ip,omitempty"`
}

// Link is one measured physical link between two device interfaces.
type Link struct {
	LocalDevice       string  `json:"local_device"`
	LocalInterface    string  `json:"local_interface"`
	RemoteDevice      string  `json:"remote_device"`
	RemoteInterface   string  `json:"remote_interface,omitempty"`
	LatencyUS         float64 `json:"latency_us"`
	LossPercent       float64 `json:"loss_percent,omitempty"`
	UtilizationInBps  int64   `json:"utilization_in_bps,omitempty"`
	UtilizationOutBps int64   `json:"utilization_out_bps,omitempty"`
	LocalLocation     string  `json:"local_location,omitempty"`
	RemoteLocation    string  `json:"remote_location,omitempty"`
	VRF               string  `json:"vrf,omitempty"`
}

// Snapshot is a point-in-time capture of measured link state across the
// network, as produced by the collection agents.
type Snapshot struct {
	Epoch       int64     `json:"epoch"`
	CollectedAt time.Time `json:"collected_at"`
	Devices     []Device  `json:"devices"`
	Links       []Link    `json:"links"`
}

// Stats counts what a parse kept and what it skipped.
type Stats struct {
	Devices        int
	Links          int
	SkippedDevices int
	SkippedLinks   int
}

// Degraded reports whether any sub-record was skipped during the parse.
func (s Stats) Degraded() bool {
	return s.SkippedDevices > 0 || s.SkippedLinks > 0
}
