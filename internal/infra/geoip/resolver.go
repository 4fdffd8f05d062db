// Package geoip resolves request countries from a local MaxMind database
// so leaderboard entries can carry a flag without calling out to a service.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when no database is loaded.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// CountryResolver maps an IP address to an ISO 3166-1 alpha-2 country code.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

// Resolver reads countries from a GeoIP2/GeoLite2 database file.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the database at path. An empty path returns a nil
// resolver, callers treat that as geo lookups disabled.
func NewResolver(path string) (CountryResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode looks up the country for ip. Unknown addresses resolve to ""
// with no error so callers can store the empty code as-is.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return strings.ToUpper(record.Country.IsoCode), nil
}

// Close releases the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
