package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/driftwatch/pkg/isis"
	"github.com/malbeclabs/driftwatch/pkg/metrics"
	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/telemetry"
)

type ViewConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Telemetry       telemetry.Source
	ISIS            isis.Source
	Reconcile       reconcile.Options
	RefreshInterval time.Duration
}

func (cfg *ViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Telemetry == nil {
		return errors.New("telemetry source is required")
	}
	if cfg.ISIS == nil {
		return errors.New("isis source is required")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("refresh interval must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Status describes which dumps the current topology was built from.
type Status struct {
	Ready          bool      `json:"ready"`
	TelemetryStamp string    `json:"telemetry_stamp"`
	ISISStamp      string    `json:"isis_stamp"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}

// Epochs lists the dump stamps available from each source, newest first.
type Epochs struct {
	Telemetry []string `json:"telemetry"`
	ISIS      []string `json:"isis"`
}

// View periodically fetches the latest telemetry snapshot and IS-IS database,
// reconciles them, and serves the most recent result to readers.
type View struct {
	log       *slog.Logger
	cfg       ViewConfig
	readyOnce sync.Once
	readyCh   chan struct{}
	refreshMu sync.Mutex // prevents concurrent refreshes

	mu             sync.RWMutex
	result         *reconcile.Result
	telemetryStamp string
	isisStamp      string
	refreshedAt    time.Time
}

func NewView(cfg ViewConfig) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &View{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}

	return v, nil
}

func (v *View) Start(ctx context.Context) {
	go func() {
		v.log.Info("topology: starting refresh loop", "interval", v.cfg.RefreshInterval)

		if err := v.Refresh(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			v.log.Error("topology: initial refresh failed", "error", err)
		}
		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if err := v.Refresh(ctx); err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					v.log.Error("topology: refresh failed", "error", err)
				}
			}
		}
	}()
}

// Refresh fetches both dumps, reconciles them, and swaps in the new result.
// Both fetches must succeed; a half-fetched topology is never published.
func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	refreshStart := time.Now()
	v.log.Debug("topology: refresh started", "start_time", refreshStart)
	defer func() {
		duration := time.Since(refreshStart)
		v.log.Info("topology: refresh completed", "duration", duration.String())
		metrics.ViewRefreshDuration.WithLabelValues("topology").Observe(duration.Seconds())
		if err := recover(); err != nil {
			metrics.ViewRefreshTotal.WithLabelValues("topology", "error").Inc()
			panic(err)
		}
	}()

	var (
		snapshot *telemetry.Dump
		database *isis.Dump
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := v.cfg.Telemetry.FetchLatest(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch telemetry snapshot: %w", err)
		}
		snapshot = d
		return nil
	})
	g.Go(func() error {
		d, err := v.cfg.ISIS.FetchLatest(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch IS-IS database: %w", err)
		}
		database = d
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		metrics.ViewRefreshTotal.WithLabelValues("topology", "error").Inc()
		return err
	}

	reconcileStart := time.Now()
	result, err := reconcile.Reconcile(ctx, snapshot.RawJSON, database.RawJSON, v.cfg.Reconcile)
	metrics.RecordReconcile(time.Since(reconcileStart), err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		metrics.ViewRefreshTotal.WithLabelValues("topology", "error").Inc()
		return fmt.Errorf("failed to reconcile topology: %w", err)
	}

	v.mu.Lock()
	v.result = result
	v.telemetryStamp = snapshot.Stamp
	v.isisStamp = database.Stamp
	v.refreshedAt = v.cfg.Clock.Now().UTC()
	v.mu.Unlock()

	metrics.ReconciledLinks.WithLabelValues(string(reconcile.HealthHealthy)).Set(float64(result.Summary.Healthy))
	metrics.ReconciledLinks.WithLabelValues(string(reconcile.HealthDriftHigh)).Set(float64(result.Summary.DriftHigh))
	metrics.ReconciledLinks.WithLabelValues(string(reconcile.HealthMissingISIS)).Set(float64(result.Summary.MissingISIS))
	metrics.ReconciledLinks.WithLabelValues(string(reconcile.HealthMissingTelemetry)).Set(float64(result.Summary.MissingTelemetry))

	v.log.Info("topology: reconciled",
		"telemetry_stamp", snapshot.Stamp,
		"isis_stamp", database.Stamp,
		"total_links", result.Summary.TotalLinks,
		"healthy", result.Summary.Healthy,
		"drift_high", result.Summary.DriftHigh,
		"missing_isis", result.Summary.MissingISIS,
		"missing_telemetry", result.Summary.MissingTelemetry)
	if result.Diagnostics.Degraded {
		v.log.Warn("topology: inputs degraded, some records were skipped",
			"skipped_links", result.Diagnostics.SkippedLinks,
			"skipped_devices", result.Diagnostics.SkippedDevices,
			"skipped_lsps", result.Diagnostics.SkippedLSPs,
			"skipped_neighbors", result.Diagnostics.SkippedNeighbors)
	}

	v.readyOnce.Do(func() {
		close(v.readyCh)
		v.log.Info("topology: view is now ready")
	})

	metrics.ViewRefreshTotal.WithLabelValues("topology", "success").Inc()
	return nil
}

// Result returns the most recent reconciliation result, or nil if no refresh
// has succeeded yet.
func (v *View) Result() *reconcile.Result {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.result
}

// Status reports the dump stamps and time of the most recent refresh.
func (v *View) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Status{
		Ready:          v.Ready(),
		TelemetryStamp: v.telemetryStamp,
		ISISStamp:      v.isisStamp,
		RefreshedAt:    v.refreshedAt,
	}
}

// Epochs lists the most recent dump stamps available from both sources.
func (v *View) Epochs(ctx context.Context, limit int) (*Epochs, error) {
	var epochs Epochs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stamps, err := v.cfg.Telemetry.ListEpochs(gctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list telemetry epochs: %w", err)
		}
		epochs.Telemetry = stamps
		return nil
	})
	g.Go(func() error {
		stamps, err := v.cfg.ISIS.ListEpochs(gctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list IS-IS epochs: %w", err)
		}
		epochs.ISIS = stamps
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &epochs, nil
}

// Ready returns true if the view has completed at least one successful refresh
func (v *View) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

// WaitReady waits for the view to be ready (has completed at least one successful refresh)
// It returns immediately if already ready, or blocks until ready or context is cancelled.
func (v *View) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for topology view: %w", ctx.Err())
	}
}
