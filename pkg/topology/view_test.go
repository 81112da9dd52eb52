package topology

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/driftwatch/pkg/isis"
	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/telemetry"
	dwtesting "github.com/malbeclabs/driftwatch/utils/pkg/testing"
)

const testSnapshotJSON = `{
	"epoch": 1768473000,
	"collected_at": "2026-01-15T10:30:00Z",
	"devices": [
		{"hostname": "ewr-sw01", "location": "ewr"},
		{"hostname": "lax-sw01", "location": "lax"}
	],
	"links": [
		{
			"local_device": "ewr-sw01",
			"local_interface": "Ethernet1",
			"remote_device": "lax-sw01",
			"remote_interface": "Ethernet2",
			"latency_us": 30500,
			"local_location": "ewr",
			"remote_location": "lax"
		}
	]
}`

const testISISJSON = `{
	"vrfs": {
		"default": {
			"isisInstances": {
				"1": {
					"level": {
						"2": {
							"lsps": {
								"0000.0000.0001.00-00": {
									"hostname": {"name": "ewr-sw01"},
									"neighbors": [{"systemId": "0000.0000.0002", "metric": 30000}]
								},
								"0000.0000.0002.00-00": {
									"hostname": {"name": "lax-sw01"},
									"neighbors": [{"systemId": "0000.0000.0001", "metric": 30000}]
								}
							}
						}
					}
				}
			}
		}
	}
}`

func newTestViewConfig(t *testing.T) ViewConfig {
	t.Helper()
	return ViewConfig{
		Logger:          dwtesting.NewLogger(),
		Clock:           clockwork.NewFakeClock(),
		Telemetry:       telemetry.NewMockSource([]byte(testSnapshotJSON), "2026-01-15T10-30-00Z"+telemetry.KeySuffix),
		ISIS:            isis.NewMockSource([]byte(testISISJSON), "2026-01-15T10-29-00Z"+isis.KeySuffix),
		RefreshInterval: time.Minute,
	}
}

func TestViewConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()
		cfg := newTestViewConfig(t)
		cfg.Logger = nil
		require.EqualError(t, cfg.Validate(), "logger is required")
	})

	t.Run("missing telemetry source", func(t *testing.T) {
		t.Parallel()
		cfg := newTestViewConfig(t)
		cfg.Telemetry = nil
		require.EqualError(t, cfg.Validate(), "telemetry source is required")
	})

	t.Run("missing isis source", func(t *testing.T) {
		t.Parallel()
		cfg := newTestViewConfig(t)
		cfg.ISIS = nil
		require.EqualError(t, cfg.Validate(), "isis source is required")
	})

	t.Run("zero refresh interval", func(t *testing.T) {
		t.Parallel()
		cfg := newTestViewConfig(t)
		cfg.RefreshInterval = 0
		require.EqualError(t, cfg.Validate(), "refresh interval must be greater than 0")
	})

	t.Run("defaults clock", func(t *testing.T) {
		t.Parallel()
		cfg := newTestViewConfig(t)
		cfg.Clock = nil
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Clock)
	})
}

func TestView_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("publishes the reconciled result", func(t *testing.T) {
		t.Parallel()

		v, err := NewView(newTestViewConfig(t))
		require.NoError(t, err)
		require.False(t, v.Ready())
		require.Nil(t, v.Result())

		require.NoError(t, v.Refresh(context.Background()))

		require.True(t, v.Ready())
		result := v.Result()
		require.NotNil(t, result)
		require.Equal(t, reconcile.Summary{
			TotalLinks: 1,
			Healthy:    1,
		}, result.Summary)
		require.Len(t, result.Topology, 1)
		require.Equal(t, reconcile.HealthHealthy, result.Topology[0].Health)

		status := v.Status()
		require.True(t, status.Ready)
		require.Equal(t, "2026-01-15T10-30-00Z", status.TelemetryStamp)
		require.Equal(t, "2026-01-15T10-29-00Z", status.ISISStamp)
		require.False(t, status.RefreshedAt.IsZero())
	})

	t.Run("fails when the telemetry fetch fails", func(t *testing.T) {
		t.Parallel()

		cfg := newTestViewConfig(t)
		cfg.Telemetry = &telemetry.MockSource{FetchErr: errors.New("bucket unreachable")}
		v, err := NewView(cfg)
		require.NoError(t, err)

		err = v.Refresh(context.Background())
		require.ErrorContains(t, err, "failed to fetch telemetry snapshot")
		require.False(t, v.Ready())
		require.Nil(t, v.Result())
	})

	t.Run("fails when the isis fetch fails", func(t *testing.T) {
		t.Parallel()

		cfg := newTestViewConfig(t)
		cfg.ISIS = &isis.MockSource{FetchErr: errors.New("bucket unreachable")}
		v, err := NewView(cfg)
		require.NoError(t, err)

		err = v.Refresh(context.Background())
		require.ErrorContains(t, err, "failed to fetch IS-IS database")
		require.False(t, v.Ready())
		require.Nil(t, v.Result())
	})

	t.Run("fails when a dump is malformed", func(t *testing.T) {
		t.Parallel()

		cfg := newTestViewConfig(t)
		cfg.Telemetry = telemetry.NewMockSource([]byte(`{`), "2026-01-15T10-30-00Z"+telemetry.KeySuffix)
		v, err := NewView(cfg)
		require.NoError(t, err)

		err = v.Refresh(context.Background())
		require.ErrorContains(t, err, "failed to reconcile topology")
		require.False(t, v.Ready())
	})

	t.Run("keeps the previous result when a refresh fails", func(t *testing.T) {
		t.Parallel()

		cfg := newTestViewConfig(t)
		mock := cfg.Telemetry.(*telemetry.MockSource)
		v, err := NewView(cfg)
		require.NoError(t, err)
		require.NoError(t, v.Refresh(context.Background()))
		first := v.Result()
		require.NotNil(t, first)

		mock.FetchErr = errors.New("bucket unreachable")
		require.Error(t, v.Refresh(context.Background()))
		require.Same(t, first, v.Result())
		require.True(t, v.Ready())
	})

	t.Run("returns early on cancelled context", func(t *testing.T) {
		t.Parallel()

		v, err := NewView(newTestViewConfig(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = v.Refresh(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, v.Ready())
	})
}

func TestView_WaitReady(t *testing.T) {
	t.Parallel()

	t.Run("returns immediately once ready", func(t *testing.T) {
		t.Parallel()

		v, err := NewView(newTestViewConfig(t))
		require.NoError(t, err)
		require.NoError(t, v.Refresh(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, v.WaitReady(ctx))
	})

	t.Run("honours context cancellation while not ready", func(t *testing.T) {
		t.Parallel()

		v, err := NewView(newTestViewConfig(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = v.WaitReady(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestView_Start(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	cfg := newTestViewConfig(t)
	cfg.Clock = clock

	v, err := NewView(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, v.WaitReady(waitCtx))
	first := v.Status().RefreshedAt

	// A tick drives another refresh, which re-stamps the result with the
	// advanced clock time.
	clock.BlockUntil(1)
	clock.Advance(cfg.RefreshInterval)
	require.Eventually(t, func() bool {
		return v.Status().RefreshedAt.After(first)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestView_Epochs(t *testing.T) {
	t.Parallel()

	t.Run("lists stamps from both sources", func(t *testing.T) {
		t.Parallel()

		v, err := NewView(newTestViewConfig(t))
		require.NoError(t, err)

		epochs, err := v.Epochs(context.Background(), 10)
		require.NoError(t, err)
		require.Equal(t, []string{"2026-01-15T10-30-00Z"}, epochs.Telemetry)
		require.Equal(t, []string{"2026-01-15T10-29-00Z"}, epochs.ISIS)
	})

	t.Run("propagates source errors", func(t *testing.T) {
		t.Parallel()

		cfg := newTestViewConfig(t)
		cfg.ISIS = &isis.MockSource{FetchErr: errors.New("bucket unreachable")}
		v, err := NewView(cfg)
		require.NoError(t, err)

		_, err = v.Epochs(context.Background(), 10)
		require.ErrorContains(t, err, "failed to list IS-IS epochs")
	})
}
