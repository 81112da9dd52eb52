package reconcile

import (
	"strings"

	"github.com/malbeclabs/driftwatch/pkg/isis"
)

// DefaultVRF is assumed for measured links that carry no VRF tag.
const DefaultVRF = "default"

// LinkKey identifies one physical link regardless of which side reported
// it. Pair carries the VRF and the two canonical device names in sorted
// order; Qualifier carries the interface pairing, ordered to match the
// device sort, and is empty for sources without interface identifiers.
type LinkKey struct {
	Pair      string
	Qualifier string
}

func (k LinkKey) String() string {
	if k.Qualifier == "" {
		return k.Pair
	}
	return k.Pair + "#" + k.Qualifier
}

// PairKey builds the canonical pair component for two device identifiers
// within a VRF. It is commutative: PairKey(v, a, b) == PairKey(v, b, a).
func PairKey(vrf, a, b string) string {
	if b < a {
		a, b = b, a
	}
	return vrf + "|" + a + "|" + b
}

// NewLinkKey builds the key for a measured link. The interface qualifier
// follows the device sort, so the two reporting directions of one physical
// link land on the same key while parallel links on other interfaces do
// not.
func NewLinkKey(vrf, localDevice, localIntf, remoteDevice, remoteIntf string) LinkKey {
	a, ai, z, zi := localDevice, localIntf, remoteDevice, remoteIntf
	if z < a || (z == a && zi < ai) {
		a, ai, z, zi = z, zi, a, ai
	}
	return LinkKey{
		Pair:      vrf + "|" + a + "|" + z,
		Qualifier: ai + "|" + zi,
	}
}

// DeviceMapper canonicalizes device identifiers across the two document
// namespaces (IS-IS system IDs vs telemetry hostnames). Both extraction
// paths run every identifier through the same mapper.
type DeviceMapper interface {
	Canonical(id string) string
}

// LayeredDeviceMapper resolves identifiers through three layers: static
// caller-configured overrides, the hostname index built from the IS-IS
// document's own hostname advertisements, then lowercased pass-through.
type LayeredDeviceMapper struct {
	overrides map[string]string
	hostnames map[string]string
}

// NewDeviceMapper creates a mapper with the given static overrides.
// Override keys and values are normalized to lower case.
func NewDeviceMapper(overrides map[string]string) *LayeredDeviceMapper {
	m := &LayeredDeviceMapper{
		overrides: make(map[string]string, len(overrides)),
		hostnames: make(map[string]string),
	}
	for k, v := range overrides {
		m.overrides[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return m
}

// IndexLSPs records the hostname advertisements of a parsed IS-IS
// document so system ID lookups resolve to the advertised hostname.
// Must not be called concurrently with Canonical.
func (m *LayeredDeviceMapper) IndexLSPs(lsps []isis.LSP) {
	for _, lsp := range lsps {
		if lsp.Hostname == "" {
			continue
		}
		m.hostnames[BaseSystemID(strings.ToLower(lsp.LSPID))] = strings.ToLower(lsp.Hostname)
	}
}

// Canonical resolves any device identifier to its canonical name. An
// identifier no layer knows passes through lowercased, so a namespace
// mismatch degrades to unmatched keys rather than an error.
func (m *LayeredDeviceMapper) Canonical(id string) string {
	lower := strings.ToLower(strings.TrimSpace(id))
	if v, ok := m.overrides[lower]; ok {
		return v
	}
	if v, ok := m.hostnames[BaseSystemID(lower)]; ok {
		return v
	}
	return lower
}

// BaseSystemID strips the pseudonode and fragment suffix from an LSP ID
// ("ac10.0001.0000.00-00" becomes "ac10.0001.0000"). Bare system IDs pass
// through unchanged.
func BaseSystemID(id string) string {
	idx := strings.LastIndex(id, ".")
	if idx <= 0 {
		return id
	}
	if strings.Contains(id[idx+1:], "-") {
		return id[:idx]
	}
	return id
}
