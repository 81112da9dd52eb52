package geoip

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver resolves an IP address to a location label.
type Resolver interface {
	Location(ip string) (string, error)
	Close() error
}

// CityResolver resolves locations from a MaxMind GeoIP2 City database.
type CityResolver struct {
	db *geoip2.Reader
}

// NewCityResolver opens the GeoIP2 City database at the given path.
func NewCityResolver(dbPath string) (*CityResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP city database: %w", err)
	}
	return &CityResolver{db: db}, nil
}

// Location returns the lowercase city name for the IP, falling back to
// the country code when the database has no city record.
func (r *CityResolver) Location(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid IP address %q", ip)
	}
	record, err := r.db.City(parsed)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ip, err)
	}
	if name := record.City.Names["en"]; name != "" {
		return strings.ToLower(name), nil
	}
	if record.Country.IsoCode != "" {
		return strings.ToLower(record.Country.IsoCode), nil
	}
	return "", fmt.Errorf("no location record for %s", ip)
}

// Close closes the underlying database.
func (r *CityResolver) Close() error {
	return r.db.Close()
}

// MockResolver is a Resolver implementation for testing.
type MockResolver struct {
	Locations map[string]string
	Closed    bool
}

// Location returns the configured location for the IP.
func (m *MockResolver) Location(ip string) (string, error) {
	if loc, ok := m.Locations[ip]; ok {
		return loc, nil
	}
	return "", fmt.Errorf("no location record for %s", ip)
}

// Close marks the resolver as closed.
func (m *MockResolver) Close() error {
	m.Closed = true
	return nil
}
