package reconcile

import (
	"sort"

	"github.com/malbeclabs/driftwatch/pkg/isis"
)

// ExtractAdvertised projects parsed LSPs into advertised links keyed by
// pair. Symmetric advertisements and multi-instance duplicates of one
// physical link merge onto one entry: the numerically lower metric wins
// and every contributing LSP ID is retained for diagnostics.
func ExtractAdvertised(lsps []isis.LSP, mapper DeviceMapper) map[string]*AdvertisedLink {
	links := make(map[string]*AdvertisedLink)
	for _, lsp := range lsps {
		// The source identity is the system ID, not the fragment ID, so
		// hostname-less devices still land on the same key from both sides.
		src := mapper.Canonical(BaseSystemID(lsp.LSPID))
		for _, n := range lsp.Neighbors {
			dst := mapper.Canonical(n.SystemID)
			if src == dst {
				// Self adjacency (pseudonode fragment), nothing to reconcile.
				continue
			}
			a, z := src, dst
			if z < a {
				a, z = z, a
			}
			pair := PairKey(lsp.VRF, a, z)

			link, ok := links[pair]
			if !ok {
				links[pair] = &AdvertisedLink{
					Pair:     pair,
					DeviceA:  a,
					DeviceZ:  z,
					VRF:      lsp.VRF,
					MetricUS: n.Metric,
					Instance: lsp.Instance,
					Level:    lsp.Level,
					LSPIDs:   []string{lsp.LSPID},
				}
				continue
			}
			if n.Metric < link.MetricUS {
				link.MetricUS = n.Metric
				link.Instance = lsp.Instance
				link.Level = lsp.Level
			}
			link.LSPIDs = appendUnique(link.LSPIDs, lsp.LSPID)
		}
	}

	for _, link := range links {
		sort.Strings(link.LSPIDs)
	}
	return links
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
