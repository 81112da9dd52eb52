package isis

// LSP represents an IS-IS Link State PDU from a router, tagged with the
// VRF, instance, and level it was advertised in.
type LSP struct {
	LSPID     string     // Full LSP ID, e.g., "ac10.0001.0000.00-00"
	VRF       string     // VRF name, e.g., "default"
	Instance  string     // IS-IS instance ID, e.g., "1"
	Level     int        // IS-IS level (1 or 2)
	Hostname  string     // Router hostname from the hostname TLV, e.g., "ewr-sw01"
	RouterID  string     // Router ID from capabilities, e.g., "172.16.0.1"
	Neighbors []Neighbor // Adjacent neighbors
}

// Neighbor represents an IS-IS adjacency to a neighboring router.
type Neighbor struct {
	SystemID     string   // Neighbor's IS-IS system ID
	Metric       uint32   // IS-IS metric (latency in microseconds)
	NeighborAddr string   // IP address of neighbor interface
	AdjSIDs      []uint32 // Segment routing adjacency SIDs
}

// Stats reports what a parse walked over and what it had to skip.
// Skips cover sub-records only; structural problems with the whole
// document are returned as errors by Parse instead.
type Stats struct {
	VRFs             int
	Instances        int
	Levels           int
	LSPs             int
	SkippedInstances int
	SkippedLevels    int
	SkippedLSPs      int
	SkippedNeighbors int
}

// Degraded reports whether any sub-record was skipped during parsing.
func (s Stats) Degraded() bool {
	return s.SkippedInstances > 0 || s.SkippedLevels > 0 || s.SkippedLSPs > 0 || s.SkippedNeighbors > 0
}
