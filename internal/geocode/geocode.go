// Package geocode resolves street addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable reports that the upstream geocoder could not answer.
var ErrUnavailable = errors.New("geocoder unavailable")

// Point is a WGS84 coordinate pair.
type Point struct {
	Longitude float64
	Latitude  float64
}

// Geocoder looks up an address. A nil Point with a nil error means the
// address is unknown or geocoding is disabled.
type Geocoder interface {
	Lookup(ctx context.Context, address string) (*Point, error)
}

// Noop never resolves anything.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (*Point, error) { return nil, nil }

// HTTP queries a Yandex-compatible geocoder API
// (GET {endpoint}?apikey=..&geocode=..&format=json&results=1).
type HTTP struct {
	Endpoint string
	APIKey   string
	client   *http.Client
}

// NewHTTP returns an HTTP geocoder with the given request timeout.
func NewHTTP(endpoint, apiKey string, timeout time.Duration) *HTTP {
	return &HTTP{Endpoint: endpoint, APIKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type yandexResponse struct {
	Response struct {
		Collection struct {
			Members []struct {
				Object struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

func (g *HTTP) Lookup(ctx context.Context, address string) (*Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("apikey", g.APIKey)
	q.Set("geocode", address)
	q.Set("format", "json")
	q.Set("results", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocoder request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	members := body.Response.Collection.Members
	if len(members) == 0 {
		return nil, nil
	}
	return parsePos(members[0].Object.Point.Pos)
}

// parsePos reads "lon lat".
func parsePos(pos string) (*Point, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: bad position %q", ErrUnavailable, pos)
	}
	lon, err1 := strconv.ParseFloat(parts[0], 64)
	lat, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: bad position %q", ErrUnavailable, pos)
	}
	return &Point{Longitude: lon, Latitude: lat}, nil
}
