package isis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3SourceConfig(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		assert.Equal(t, "driftwatch-isis-db", DefaultBucket)
		assert.Equal(t, "us-east-1", DefaultRegion)
		assert.Equal(t, "_isis.json", KeySuffix)
	})
}

type testISISNeighbor struct {
	systemID     string
	metric       uint32
	neighborAddr string
	adjSIDs      []uint32
}

type testISISDevice struct {
	hostname  string
	systemID  string
	routerID  string
	neighbors []testISISNeighbor
}

// createTestISISDump builds a raw IS-IS dump document from device specs.
func createTestISISDump(t *testing.T, devices []testISISDevice) []byte {
	t.Helper()

	lsps := make(map[string]any)
	for _, device := range devices {
		neighbors := make([]any, 0, len(device.neighbors))
		for _, n := range device.neighbors {
			adjSids := make([]any, 0, len(n.adjSIDs))
			for _, sid := range n.adjSIDs {
				adjSids = append(adjSids, float64(sid))
			}
			neighbors = append(neighbors, map[string]any{
				"systemId":     n.systemID,
				"metric":       float64(n.metric),
				"neighborAddr": n.neighborAddr,
				"adjSids":      adjSids,
			})
		}

		lsps[device.systemID] = map[string]any{
			"hostname": map[string]any{
				"name": device.hostname,
			},
			"routerCapabilities": map[string]any{
				"routerId": device.routerID,
			},
			"neighbors": neighbors,
		}
	}

	dump := map[string]any{
		"vrfs": map[string]any{
			"default": map[string]any{
				"isisInstances": map[string]any{
					"1": map[string]any{
						"level": map[string]any{
							"2": map[string]any{
								"lsps": lsps,
							},
						},
					},
				},
			},
		},
	}

	data, err := json.Marshal(dump)
	require.NoError(t, err)
	return data
}

func TestMockSource(t *testing.T) {
	t.Run("fetch latest returns dump", func(t *testing.T) {
		data := createTestISISDump(t, []testISISDevice{
			{
				hostname: "ewr-sw01",
				systemID: "ac10.0001.0000.00-00",
				routerID: "172.16.0.1",
				neighbors: []testISISNeighbor{
					{
						systemID:     "ac10.0002.0000",
						metric:       1000,
						neighborAddr: "172.16.0.117",
						adjSIDs:      []uint32{100001},
					},
				},
			},
		})

		source := NewMockSource(data, "2026-01-15T12-00-00Z_isis.json")

		ctx := context.Background()
		dump, err := source.FetchLatest(ctx)
		require.NoError(t, err)
		assert.NotNil(t, dump)
		assert.Equal(t, "2026-01-15T12-00-00Z_isis.json", dump.FileName)
		assert.Equal(t, "2026-01-15T12-00-00Z", dump.Stamp)
		assert.Equal(t, data, dump.RawJSON)
		assert.False(t, dump.FetchedAt.IsZero())

		// Parse the dump
		lsps, _, err := Parse(dump.RawJSON)
		require.NoError(t, err)
		assert.Len(t, lsps, 1)
		assert.Equal(t, "ewr-sw01", lsps[0].Hostname)
	})

	t.Run("fetch by stamp", func(t *testing.T) {
		source := NewMockSource([]byte(`{"vrfs": {}}`), "2026-01-15T12-00-00Z_isis.json")

		ctx := context.Background()
		dump, err := source.Fetch(ctx, "2026-01-15T12-00-00Z")
		require.NoError(t, err)
		assert.Equal(t, "2026-01-15T12-00-00Z", dump.Stamp)

		_, err = source.Fetch(ctx, "2026-01-16T12-00-00Z")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no IS-IS dump for stamp")
	})

	t.Run("list epochs returns stamp", func(t *testing.T) {
		source := NewMockSource([]byte(`{"vrfs": {}}`), "2026-01-15T12-00-00Z_isis.json")

		stamps, err := source.ListEpochs(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-01-15T12-00-00Z"}, stamps)
	})

	t.Run("fetch latest returns error", func(t *testing.T) {
		source := &MockSource{
			FetchErr: errors.New("network error"),
		}

		ctx := context.Background()
		dump, err := source.FetchLatest(ctx)
		assert.Error(t, err)
		assert.Nil(t, dump)
		assert.Contains(t, err.Error(), "network error")
	})

	t.Run("close marks source as closed", func(t *testing.T) {
		source := NewMockSource([]byte("{}"), "test.json")
		assert.False(t, source.Closed)

		err := source.Close()
		assert.NoError(t, err)
		assert.True(t, source.Closed)
	})

	t.Run("source implements interface", func(t *testing.T) {
		var _ Source = (*MockSource)(nil)
		var _ Source = (*S3Source)(nil)
	})
}

func TestS3SourceClose(t *testing.T) {
	// S3Source.Close() should be a no-op
	source := &S3Source{
		client: nil,
		bucket: "test-bucket",
	}

	err := source.Close()
	assert.NoError(t, err)
}
