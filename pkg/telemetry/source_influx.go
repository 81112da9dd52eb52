package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
	"github.com/jonboulle/clockwork"
)

// InfluxDBClient is an interface for querying InfluxDB 3 with SQL
type InfluxDBClient interface {
	// QuerySQL executes a SQL query and returns results as a slice of maps
	QuerySQL(ctx context.Context, sqlQuery string) ([]map[string]any, error)
	// Close closes the client and releases resources
	Close() error
}

// SDKInfluxDBClient implements InfluxDBClient using the official InfluxDB 3 Go SDK
type SDKInfluxDBClient struct {
	client *influxdb3.Client
}

// NewSDKInfluxDBClient creates a new SDK-based InfluxDB client
func NewSDKInfluxDBClient(host, token, database string) (*SDKInfluxDBClient, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     host,
		Token:    token,
		Database: database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}
	return &SDKInfluxDBClient{client: client}, nil
}

func (c *SDKInfluxDBClient) QuerySQL(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	iterator, err := c.client.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	var results []map[string]any
	for iterator.Next() {
		value := iterator.Value()
		row := make(map[string]any)
		for k, v := range value {
			row[k] = v
		}
		results = append(results, row)
	}

	if err := iterator.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

func (c *SDKInfluxDBClient) Close() error {
	if c.client != nil {
		err := c.client.Close()
		if err != nil {
			if isExpectedCloseError(err) {
				return nil
			}
		}
		return err
	}
	return nil
}

func isExpectedCloseError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "connection is closing") ||
		strings.Contains(errStr, "code = Canceled") ||
		strings.Contains(errStr, "grpc: the client connection is closing")
}

const (
	// DefaultMeasurement is the InfluxDB measurement holding link probe samples.
	DefaultMeasurement = "linkProbes"
	// DefaultQueryWindow bounds how far back a snapshot query reaches.
	DefaultQueryWindow = 1 * time.Hour
)

// InfluxSourceConfig configures an InfluxDB-backed snapshot source.
type InfluxSourceConfig struct {
	Logger      *slog.Logger
	Client      InfluxDBClient
	Measurement string
	QueryWindow time.Duration
	Clock       clockwork.Clock
}

func (cfg *InfluxSourceConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("influxdb client is required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.QueryWindow <= 0 {
		cfg.QueryWindow = DefaultQueryWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// InfluxSource implements Source by synthesizing snapshots from link probe
// samples in InfluxDB. It is a live source: every fetch builds a fresh
// snapshot from the newest sample per link within the query window.
type InfluxSource struct {
	log *slog.Logger
	cfg InfluxSourceConfig
}

// NewInfluxSource creates a snapshot source backed by InfluxDB.
func NewInfluxSource(cfg InfluxSourceConfig) (*InfluxSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &InfluxSource{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// FetchLatest builds a snapshot from the newest samples ending now.
func (s *InfluxSource) FetchLatest(ctx context.Context) (*Dump, error) {
	now := s.cfg.Clock.Now().UTC()
	return s.fetchWindow(ctx, now)
}

// Fetch builds a snapshot from the newest samples ending at the given stamp.
func (s *InfluxSource) Fetch(ctx context.Context, stamp string) (*Dump, error) {
	end, err := time.Parse(StampLayout, stamp)
	if err != nil {
		return nil, fmt.Errorf("invalid stamp %q: %w", stamp, err)
	}
	return s.fetchWindow(ctx, end.UTC())
}

// ListEpochs returns the single stamp a live source can serve: now.
func (s *InfluxSource) ListEpochs(ctx context.Context, limit int) ([]string, error) {
	return []string{s.cfg.Clock.Now().UTC().Format(StampLayout)}, nil
}

// Close closes the underlying InfluxDB client.
func (s *InfluxSource) Close() error {
	return s.cfg.Client.Close()
}

func (s *InfluxSource) fetchWindow(ctx context.Context, end time.Time) (*Dump, error) {
	start := end.Add(-s.cfg.QueryWindow)
	s.log.Debug("telemetry: querying influxdb for link probes", "from", start, "to", end)

	queryStart := time.Now()
	sqlQuery := fmt.Sprintf(`
		SELECT
			time,
			host,
			intf,
			peer_host,
			peer_intf,
			location,
			peer_location,
			vrf,
			rtt_us,
			loss_percent,
			in_bps,
			out_bps
		FROM %q
		WHERE time >= '%s' AND time < '%s'
	`, s.cfg.Measurement, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))

	rows, err := s.cfg.Client.QuerySQL(ctx, sqlQuery)
	queryDuration := time.Since(queryStart)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to execute SQL query: %w", err)
	}
	s.log.Debug("telemetry: influxdb query completed", "rows", len(rows), "duration", queryDuration.String())

	snapshot, skipped := s.convertRows(rows, end)
	if skipped > 0 {
		s.log.Warn("telemetry: skipped malformed probe rows", "skipped", skipped, "kept", len(snapshot.Links))
	}

	rawJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	stamp := end.Format(StampLayout)
	return &Dump{
		FetchedAt: time.Now(),
		RawJSON:   rawJSON,
		FileName:  stamp + KeySuffix,
		Stamp:     stamp,
	}, nil
}

// convertRows reduces probe rows to the newest sample per link and shapes
// the result as a snapshot document.
func (s *InfluxSource) convertRows(rows []map[string]any, end time.Time) (*Snapshot, int) {
	type sample struct {
		link Link
		at   time.Time
	}

	var skipped int
	latest := make(map[string]sample)
	locations := make(map[string]string)

	for _, row := range rows {
		at := extractTimeFromRow(row, "time")
		host := extractStringFromRow(row, "host")
		intf := extractStringFromRow(row, "intf")
		peerHost := extractStringFromRow(row, "peer_host")
		rttUS := extractFloat64FromRow(row, "rtt_us")
		if at == nil || host == nil || intf == nil || peerHost == nil || rttUS == nil {
			skipped++
			continue
		}

		link := Link{
			LocalDevice:    *host,
			LocalInterface: *intf,
			RemoteDevice:   *peerHost,
			LatencyUS:      *rttUS,
		}
		if v := extractStringFromRow(row, "peer_intf"); v != nil {
			link.RemoteInterface = *v
		}
		if v := extractStringFromRow(row, "location"); v != nil {
			link.LocalLocation = *v
			locations[link.LocalDevice] = *v
		}
		if v := extractStringFromRow(row, "peer_location"); v != nil {
			link.RemoteLocation = *v
		}
		if v := extractStringFromRow(row, "vrf"); v != nil {
			link.VRF = *v
		}
		if v := extractFloat64FromRow(row, "loss_percent"); v != nil {
			link.LossPercent = *v
		}
		if v := extractInt64FromRow(row, "in_bps"); v != nil {
			link.UtilizationInBps = *v
		}
		if v := extractInt64FromRow(row, "out_bps"); v != nil {
			link.UtilizationOutBps = *v
		}

		key := link.LocalDevice + ":" + link.LocalInterface + ":" + link.RemoteDevice + ":" + link.RemoteInterface
		if prev, ok := latest[key]; ok && !at.After(prev.at) {
			continue
		}
		latest[key] = sample{link: link, at: *at}
	}

	snapshot := &Snapshot{
		Epoch:       end.Unix(),
		CollectedAt: end,
	}

	linkKeys := make([]string, 0, len(latest))
	for k := range latest {
		linkKeys = append(linkKeys, k)
	}
	sort.Strings(linkKeys)
	for _, k := range linkKeys {
		snapshot.Links = append(snapshot.Links, latest[k].link)
	}

	hosts := make([]string, 0, len(locations))
	for h := range locations {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		snapshot.Devices = append(snapshot.Devices, Device{Hostname: h, Location: locations[h]})
	}

	return snapshot, skipped
}

func extractStringFromRow(row map[string]any, key string) *string {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		return &v
	default:
		s := fmt.Sprintf("%v", v)
		return &s
	}
}

func extractInt64FromRow(row map[string]any, key string) *int64 {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &i
		}
		return nil
	case int64:
		return &v
	case int:
		i := int64(v)
		return &i
	case float64:
		i := int64(v)
		return &i
	default:
		return nil
	}
}

func extractFloat64FromRow(row map[string]any, key string) *float64 {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
		return nil
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func extractTimeFromRow(row map[string]any, key string) *time.Time {
	val, ok := row[key]
	if !ok || val == nil {
		return nil
	}
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		// The SDK may return times as strings in a few formats.
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999 -0700 UTC",
			"2006-01-02 15:04:05.999999999 +0000 UTC",
			"2006-01-02 15:04:05 +0000 UTC",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}
