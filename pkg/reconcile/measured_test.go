package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/driftwatch/pkg/telemetry"
)

func TestExtractMeasured(t *testing.T) {
	t.Parallel()

	t.Run("both directions merge onto one link", func(t *testing.T) {
		t.Parallel()
		snapshot := &telemetry.Snapshot{
			Links: []telemetry.Link{
				{
					LocalDevice: "ewr-sw01", LocalInterface: "Ethernet1",
					RemoteDevice: "lax-sw01", RemoteInterface: "Ethernet7",
					LatencyUS: 31250, LocalLocation: "ewr",
				},
				{
					LocalDevice: "lax-sw01", LocalInterface: "Ethernet7",
					RemoteDevice: "ewr-sw01", RemoteInterface: "Ethernet1",
					LatencyUS: 31180, LocalLocation: "lax",
				},
			},
		}

		links := ExtractMeasured(snapshot, NewDeviceMapper(nil))
		require.Len(t, links, 1)

		key := NewLinkKey("default", "ewr-sw01", "Ethernet1", "lax-sw01", "Ethernet7")
		link := links[key]
		require.NotNil(t, link)
		assert.Equal(t, "ewr-sw01", link.DeviceA)
		assert.Equal(t, "Ethernet1", link.InterfaceA)
		assert.Equal(t, "lax-sw01", link.DeviceZ)
		assert.Equal(t, "Ethernet7", link.InterfaceZ)
		assert.Equal(t, 31180.0, link.LatencyUS, "lower direction wins")
		assert.Equal(t, "ewr", link.LocationA)
		assert.Equal(t, "lax", link.LocationZ, "each direction contributes its local location")
		assert.Equal(t, 2, link.Observations)
	})

	t.Run("parallel links stay distinct", func(t *testing.T) {
		t.Parallel()
		snapshot := &telemetry.Snapshot{
			Links: []telemetry.Link{
				{
					LocalDevice: "ewr-sw01", LocalInterface: "Ethernet1",
					RemoteDevice: "lax-sw01", RemoteInterface: "Ethernet7",
					LatencyUS: 31250,
				},
				{
					LocalDevice: "ewr-sw01", LocalInterface: "Ethernet2",
					RemoteDevice: "lax-sw01", RemoteInterface: "Ethernet8",
					LatencyUS: 45100,
				},
			},
		}

		links := ExtractMeasured(snapshot, NewDeviceMapper(nil))
		assert.Len(t, links, 2)
	})

	t.Run("missing vrf defaults", func(t *testing.T) {
		t.Parallel()
		snapshot := &telemetry.Snapshot{
			Links: []telemetry.Link{
				{
					LocalDevice: "ewr-sw01", LocalInterface: "Ethernet1",
					RemoteDevice: "lax-sw01", LatencyUS: 31250,
				},
				{
					LocalDevice: "ewr-sw01", LocalInterface: "Ethernet1",
					RemoteDevice: "lax-sw01", LatencyUS: 31250, VRF: "mgmt",
				},
			},
		}

		links := ExtractMeasured(snapshot, NewDeviceMapper(nil))
		require.Len(t, links, 2, "vrf participates in the key")
		for key, link := range links {
			assert.Equal(t, key.Pair, PairKey(link.VRF, "ewr-sw01", "lax-sw01"))
		}
	})

	t.Run("device names are canonicalized", func(t *testing.T) {
		t.Parallel()
		snapshot := &telemetry.Snapshot{
			Links: []telemetry.Link{
				{
					LocalDevice: "EWR-SW01", LocalInterface: "Ethernet1",
					RemoteDevice: "LAX-SW01", RemoteInterface: "Ethernet7",
					LatencyUS: 31250,
				},
			},
		}

		links := ExtractMeasured(snapshot, NewDeviceMapper(nil))
		key := NewLinkKey("default", "ewr-sw01", "Ethernet1", "lax-sw01", "Ethernet7")
		assert.NotNil(t, links[key])
	})

	t.Run("empty snapshot yields empty map", func(t *testing.T) {
		t.Parallel()
		links := ExtractMeasured(&telemetry.Snapshot{}, NewDeviceMapper(nil))
		assert.Empty(t, links)
	})
}
