package isis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// jsonVRF represents a VRF containing IS-IS instances.
type jsonVRF struct {
	ISISInstances map[string]json.RawMessage `json:"isisInstances"`
}

// jsonISISInstance represents an IS-IS instance with levels.
type jsonISISInstance struct {
	Level map[string]json.RawMessage `json:"level"`
}

// jsonLevel represents an IS-IS level with LSPs keyed by LSP ID.
type jsonLevel struct {
	LSPs map[string]json.RawMessage `json:"lsps"`
}

// jsonLSP represents a Link State PDU from a router.
type jsonLSP struct {
	Hostname           jsonHostname           `json:"hostname"`
	Neighbors          []jsonNeighbor         `json:"neighbors"`
	RouterCapabilities jsonRouterCapabilities `json:"routerCapabilities"`
}

// jsonHostname contains the router hostname.
type jsonHostname struct {
	Name string `json:"name"`
}

// jsonNeighbor represents an IS-IS adjacency. Metric is a pointer so a
// neighbor that omits it can be told apart from an explicit zero.
type jsonNeighbor struct {
	SystemID     string   `json:"systemId"`
	Metric       *uint32  `json:"metric"`
	NeighborAddr string   `json:"neighborAddr"`
	AdjSIDs      []uint32 `json:"adjSids"`
}

// jsonRouterCapabilities contains router capability information.
type jsonRouterCapabilities struct {
	RouterID  string `json:"routerId"`
	SRGBBase  uint32 `json:"srgbBase"`
	SRGBRange uint32 `json:"srgbRange"`
}

// Parse parses a raw IS-IS database dump into LSPs, walking every VRF,
// instance, and level present in the document.
//
// A document that is not a JSON object or has no "vrfs" field is a hard
// error. Inside the tree, malformed sub-records (an instance, level, or LSP
// that does not decode, a neighbor without a system ID or metric) are
// skipped and counted in Stats rather than failing the parse; an empty
// "lsps" mapping is valid and contributes nothing.
func Parse(data []byte) ([]LSP, Stats, error) {
	var stats Stats

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, stats, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	rawVRFs, ok := top["vrfs"]
	if !ok {
		return nil, stats, fmt.Errorf("missing required field %q", "vrfs")
	}

	var vrfs map[string]jsonVRF
	if err := json.Unmarshal(rawVRFs, &vrfs); err != nil {
		return nil, stats, fmt.Errorf("field %q is not an object of VRFs: %w", "vrfs", err)
	}

	var lsps []LSP
	for _, vrfName := range sortedKeys(vrfs) {
		stats.VRFs++
		vrf := vrfs[vrfName]

		for _, instanceID := range sortedKeys(vrf.ISISInstances) {
			var instance jsonISISInstance
			if err := json.Unmarshal(vrf.ISISInstances[instanceID], &instance); err != nil {
				stats.SkippedInstances++
				continue
			}
			stats.Instances++

			for _, levelKey := range sortedKeys(instance.Level) {
				levelNum, err := strconv.Atoi(levelKey)
				if err != nil {
					stats.SkippedLevels++
					continue
				}

				var level jsonLevel
				if err := json.Unmarshal(instance.Level[levelKey], &level); err != nil {
					stats.SkippedLevels++
					continue
				}
				stats.Levels++

				for _, lspID := range sortedKeys(level.LSPs) {
					var jl jsonLSP
					if err := json.Unmarshal(level.LSPs[lspID], &jl); err != nil {
						stats.SkippedLSPs++
						continue
					}
					stats.LSPs++

					lsp := LSP{
						LSPID:    lspID,
						VRF:      vrfName,
						Instance: instanceID,
						Level:    levelNum,
						Hostname: jl.Hostname.Name,
						RouterID: jl.RouterCapabilities.RouterID,
					}

					for _, jn := range jl.Neighbors {
						if jn.SystemID == "" || jn.Metric == nil {
							stats.SkippedNeighbors++
							continue
						}
						lsp.Neighbors = append(lsp.Neighbors, Neighbor{
							SystemID:     jn.SystemID,
							Metric:       *jn.Metric,
							NeighborAddr: jn.NeighborAddr,
							AdjSIDs:      jn.AdjSIDs,
						})
					}

					lsps = append(lsps, lsp)
				}
			}
		}
	}

	return lsps, stats, nil
}

// sortedKeys returns the map's keys in sorted order so parse output is
// stable regardless of map iteration order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
