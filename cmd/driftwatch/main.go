package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/driftwatch/pkg/geoip"
	"github.com/malbeclabs/driftwatch/pkg/isis"
	"github.com/malbeclabs/driftwatch/pkg/metrics"
	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/server"
	"github.com/malbeclabs/driftwatch/pkg/telemetry"
	"github.com/malbeclabs/driftwatch/pkg/topology"
	"github.com/malbeclabs/driftwatch/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr      = "0.0.0.0:8080"
	defaultMetricsAddr     = "0.0.0.0:0"
	defaultRefreshInterval = 60 * time.Second

	geoipCityDBPathEnvVar = "GEOIP_CITY_DB_PATH"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	enablePprofFlag := flag.Bool("enable-pprof", false, "enable pprof server")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")

	// Refresh and reconciliation configuration
	refreshIntervalFlag := flag.Duration("refresh-interval", defaultRefreshInterval, "Interval between topology refreshes (or set REFRESH_INTERVAL env var)")
	driftThresholdMsFlag := flag.Float64("drift-threshold-ms", reconcile.DefaultDriftThresholdMs, "Latency drift above this many milliseconds marks a link drift_high")
	sessionTTLFlag := flag.Duration("session-ttl", server.DefaultSessionTTL, "How long ad-hoc reconcile sessions stay fetchable")
	deviceMapFlag := flag.String("device-map", "", "Path to a JSON file mapping IS-IS system IDs to device hostnames")

	// Telemetry snapshot source configuration. S3 is the default; InfluxDB
	// takes over when INFLUX_URL, INFLUX_TOKEN, and INFLUX_DATABASE are set.
	telemetryS3BucketFlag := flag.String("telemetry-s3-bucket", telemetry.DefaultBucket, "S3 bucket for telemetry snapshots (or set TELEMETRY_S3_BUCKET env var)")
	telemetryS3RegionFlag := flag.String("telemetry-s3-region", telemetry.DefaultRegion, "AWS region for the telemetry bucket (or set TELEMETRY_S3_REGION env var)")
	telemetryS3EndpointFlag := flag.String("telemetry-s3-endpoint", "", "Custom S3 endpoint for the telemetry bucket (or set TELEMETRY_S3_ENDPOINT env var)")
	influxMeasurementFlag := flag.String("influx-measurement", telemetry.DefaultMeasurement, "InfluxDB measurement holding link probe samples")
	influxQueryWindowFlag := flag.Duration("influx-query-window", telemetry.DefaultQueryWindow, "How far back to query link probes from InfluxDB")

	// IS-IS database source configuration
	isisS3BucketFlag := flag.String("isis-s3-bucket", isis.DefaultBucket, "S3 bucket for IS-IS dumps (or set ISIS_S3_BUCKET env var)")
	isisS3RegionFlag := flag.String("isis-s3-region", isis.DefaultRegion, "AWS region for the IS-IS bucket (or set ISIS_S3_REGION env var)")
	isisS3EndpointFlag := flag.String("isis-s3-endpoint", "", "Custom S3 endpoint for the IS-IS bucket (or set ISIS_S3_ENDPOINT env var)")

	// GeoIP configuration (optional)
	geoipCityDBPathFlag := flag.String("geoip-city-db-path", "", "Path to MaxMind GeoIP2 City database file (or set GEOIP_CITY_DB_PATH env var)")

	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	// Override flags with environment variables if set
	if envRefreshInterval := os.Getenv("REFRESH_INTERVAL"); envRefreshInterval != "" {
		if d, err := time.ParseDuration(envRefreshInterval); err == nil {
			*refreshIntervalFlag = d
		}
	}
	if envTelemetryBucket := os.Getenv("TELEMETRY_S3_BUCKET"); envTelemetryBucket != "" {
		*telemetryS3BucketFlag = envTelemetryBucket
	}
	if envTelemetryRegion := os.Getenv("TELEMETRY_S3_REGION"); envTelemetryRegion != "" {
		*telemetryS3RegionFlag = envTelemetryRegion
	}
	if envTelemetryEndpoint := os.Getenv("TELEMETRY_S3_ENDPOINT"); envTelemetryEndpoint != "" {
		*telemetryS3EndpointFlag = envTelemetryEndpoint
	}
	if envISISBucket := os.Getenv("ISIS_S3_BUCKET"); envISISBucket != "" {
		*isisS3BucketFlag = envISISBucket
	}
	if envISISRegion := os.Getenv("ISIS_S3_REGION"); envISISRegion != "" {
		*isisS3RegionFlag = envISISRegion
	}
	if envISISEndpoint := os.Getenv("ISIS_S3_ENDPOINT"); envISISEndpoint != "" {
		*isisS3EndpointFlag = envISISEndpoint
	}
	if *geoipCityDBPathFlag == "" {
		if envPath := os.Getenv(geoipCityDBPathEnvVar); envPath != "" {
			*geoipCityDBPathFlag = envPath
		}
	}

	log := logger.New(*verboseFlag)

	log.Info("driftwatch starting",
		"version", version,
		"commit", commit,
		"refresh_interval", *refreshIntervalFlag,
		"drift_threshold_ms", *driftThresholdMsFlag,
	)

	// Initialize Sentry for error tracking (optional, no-op if DSN not set)
	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN != "" {
		release := version
		if commit != "none" {
			release = version + "-" + commit
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryDSN,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
			Release:     release,
		}); err != nil {
			log.Warn("sentry initialization failed", "error", err)
			sentryDSN = ""
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

	if *enablePprofFlag {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	metricsServerErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	// Telemetry snapshot source: InfluxDB when fully configured, S3 otherwise.
	var telemetrySource telemetry.Source
	influxURL := os.Getenv("INFLUX_URL")
	influxToken := os.Getenv("INFLUX_TOKEN")
	influxDatabase := os.Getenv("INFLUX_DATABASE")
	if influxURL != "" && influxToken != "" && influxDatabase != "" {
		influxClient, err := telemetry.NewSDKInfluxDBClient(influxURL, influxToken, influxDatabase)
		if err != nil {
			return fmt.Errorf("failed to create InfluxDB client: %w", err)
		}
		telemetrySource, err = telemetry.NewInfluxSource(telemetry.InfluxSourceConfig{
			Logger:      log,
			Client:      influxClient,
			Measurement: *influxMeasurementFlag,
			QueryWindow: *influxQueryWindowFlag,
		})
		if err != nil {
			_ = influxClient.Close()
			return fmt.Errorf("failed to create InfluxDB telemetry source: %w", err)
		}
		log.Info("telemetry source: influxdb", "measurement", *influxMeasurementFlag, "query_window", *influxQueryWindowFlag)
	} else {
		s3Source, err := telemetry.NewS3Source(ctx, telemetry.S3SourceConfig{
			Bucket:      *telemetryS3BucketFlag,
			Region:      *telemetryS3RegionFlag,
			EndpointURL: *telemetryS3EndpointFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create telemetry S3 source: %w", err)
		}
		telemetrySource = s3Source
		log.Info("telemetry source: s3", "bucket", *telemetryS3BucketFlag, "region", *telemetryS3RegionFlag)
	}
	defer func() {
		if err := telemetrySource.Close(); err != nil {
			log.Warn("failed to close telemetry source", "error", err)
		}
	}()

	isisSource, err := isis.NewS3Source(ctx, isis.S3SourceConfig{
		Bucket:      *isisS3BucketFlag,
		Region:      *isisS3RegionFlag,
		EndpointURL: *isisS3EndpointFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create IS-IS S3 source: %w", err)
	}
	defer func() {
		if err := isisSource.Close(); err != nil {
			log.Warn("failed to close IS-IS source", "error", err)
		}
	}()
	log.Info("isis source: s3", "bucket", *isisS3BucketFlag, "region", *isisS3RegionFlag)

	// GeoIP resolver for locating devices by public IP (optional)
	var locations reconcile.LocationResolver
	if *geoipCityDBPathFlag != "" {
		resolver, err := geoip.NewCityResolver(*geoipCityDBPathFlag)
		if err != nil {
			return fmt.Errorf("failed to initialize GeoIP: %w", err)
		}
		defer func() {
			if err := resolver.Close(); err != nil {
				log.Warn("failed to close GeoIP resolver", "error", err)
			}
		}()
		locations = resolver
		log.Info("geoip resolver initialized", "city_db", *geoipCityDBPathFlag)
	}

	var deviceOverrides map[string]string
	if *deviceMapFlag != "" {
		deviceOverrides, err = loadDeviceMap(*deviceMapFlag)
		if err != nil {
			return fmt.Errorf("failed to load device map: %w", err)
		}
		log.Info("device map loaded", "path", *deviceMapFlag, "entries", len(deviceOverrides))
	}

	reconcileOpts := reconcile.Options{
		DriftThresholdMs: *driftThresholdMsFlag,
		DeviceOverrides:  deviceOverrides,
		Locations:        locations,
	}

	view, err := topology.NewView(topology.ViewConfig{
		Logger:          log,
		Telemetry:       telemetrySource,
		ISIS:            isisSource,
		Reconcile:       reconcileOpts,
		RefreshInterval: *refreshIntervalFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create topology view: %w", err)
	}
	view.Start(ctx)

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	srv, err := server.New(server.Config{
		Logger:      log,
		ListenAddr:  *listenAddrFlag,
		View:        view,
		Reconcile:   reconcileOpts,
		SessionTTL:  *sessionTTLFlag,
		Version:     version,
		Commit:      commit,
		Date:        date,
		CORSOrigins: corsOrigins,
		SentryDSN:   sentryDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
		return nil
	case err := <-serverErrCh:
		log.Error("server: server error causing shutdown", "error", err)
		return err
	case err := <-metricsServerErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}
}

// loadDeviceMap reads a JSON object of IS-IS system ID to hostname overrides.
func loadDeviceMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse device map %s: %w", path, err)
	}
	return overrides, nil
}
