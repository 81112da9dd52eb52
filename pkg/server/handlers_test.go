package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/topology"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestView(t, false))

	rr := httptest.NewRecorder()
	srv.handleVersion(rr, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, VersionResponse{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-15"}, resp)
}

func TestGetTopology(t *testing.T) {
	t.Parallel()

	t.Run("unavailable before first refresh", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, newTestView(t, false))

		rr := httptest.NewRecorder()
		srv.handleTopology(rr, httptest.NewRequest(http.MethodGet, "/api/topology", nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("returns the reconciled topology", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, newTestView(t, true))

		rr := httptest.NewRecorder()
		srv.handleTopology(rr, httptest.NewRequest(http.MethodGet, "/api/topology", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var result reconcile.Result
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
		require.Equal(t, reconcile.Summary{
			TotalLinks:       6,
			Healthy:          3,
			DriftHigh:        1,
			MissingISIS:      1,
			MissingTelemetry: 1,
		}, result.Summary)
		require.Len(t, result.Topology, 6)
	})
}

func TestGetLinks(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestView(t, true))

	get := func(t *testing.T, target string) (*httptest.ResponseRecorder, PaginatedResponse[reconcile.ReconciledLink]) {
		t.Helper()
		rr := httptest.NewRecorder()
		srv.handleLinks(rr, httptest.NewRequest(http.MethodGet, target, nil))
		var resp PaginatedResponse[reconcile.ReconciledLink]
		if rr.Code == http.StatusOK {
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		}
		return rr, resp
	}

	t.Run("returns all links sorted by key", func(t *testing.T) {
		rr, resp := get(t, "/api/links")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 6, resp.Total)
		require.Len(t, resp.Items, 6)

		keys := make([]string, 0, len(resp.Items))
		for _, link := range resp.Items {
			keys = append(keys, link.Key)
		}
		require.Equal(t, []string{
			"default|dfw-sw01|lax-sw01",
			"default|dfw-sw01|ord-sw01#Ethernet5|Ethernet5",
			"default|ewr-sw01|lax-sw01#Ethernet1|Ethernet1",
			"default|ewr-sw01|lax-sw01#Ethernet2|Ethernet2",
			"default|ewr-sw01|ord-sw01#Ethernet4|Ethernet4",
			"default|lax-sw01|ord-sw01#Ethernet3|Ethernet3",
		}, keys)
	})

	t.Run("paginates", func(t *testing.T) {
		rr, resp := get(t, "/api/links?limit=2&offset=4")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 6, resp.Total)
		require.Equal(t, 2, resp.Limit)
		require.Equal(t, 4, resp.Offset)
		require.Len(t, resp.Items, 2)
		require.Equal(t, "default|ewr-sw01|ord-sw01#Ethernet4|Ethernet4", resp.Items[0].Key)
	})

	t.Run("offset past the end yields an empty page", func(t *testing.T) {
		rr, resp := get(t, "/api/links?offset=100")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 6, resp.Total)
		require.NotNil(t, resp.Items)
		require.Empty(t, resp.Items)
	})

	t.Run("filters by health", func(t *testing.T) {
		rr, resp := get(t, "/api/links?health=healthy")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 3, resp.Total)
		for _, link := range resp.Items {
			require.Equal(t, reconcile.HealthHealthy, link.Health)
		}

		rr, resp = get(t, "/api/links?health=missing_telemetry")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, 1, resp.Total)
		require.Equal(t, "default|dfw-sw01|lax-sw01", resp.Items[0].Key)
	})

	t.Run("rejects an unknown health filter", func(t *testing.T) {
		rr, _ := get(t, "/api/links?health=sideways")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unavailable before first refresh", func(t *testing.T) {
		cold, _ := newTestServer(t, newTestView(t, false))
		rr := httptest.NewRecorder()
		cold.handleLinks(rr, httptest.NewRequest(http.MethodGet, "/api/links", nil))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestGetLocations(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestView(t, true))

	rr := httptest.NewRecorder()
	srv.handleLocations(rr, httptest.NewRequest(http.MethodGet, "/api/locations", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var locations []reconcile.LocationRollup
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&locations))
	require.Len(t, locations, 3)

	names := make([]string, 0, len(locations))
	total := 0
	for _, loc := range locations {
		names = append(names, loc.Location)
		total += loc.TotalLinks
	}
	require.Equal(t, []string{"dfw", "ewr", "lax"}, names)
	require.Equal(t, 6, total)
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestView(t, true))

	rr := httptest.NewRecorder()
	srv.handleSummary(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.True(t, resp.Ready)
	require.Equal(t, "2026-01-15T10-30-00Z", resp.TelemetryStamp)
	require.Equal(t, "2026-01-15T10-29-00Z", resp.ISISStamp)
	require.Equal(t, 6, resp.Summary.TotalLinks)
	require.False(t, resp.Diagnostics.Degraded)
}

func TestGetEpochs(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, newTestView(t, true))

	rr := httptest.NewRecorder()
	srv.handleEpochs(rr, httptest.NewRequest(http.MethodGet, "/api/epochs?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var epochs topology.Epochs
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&epochs))
	require.Equal(t, []string{"2026-01-15T10-30-00Z"}, epochs.Telemetry)
	require.Equal(t, []string{"2026-01-15T10-29-00Z"}, epochs.ISIS)
}
