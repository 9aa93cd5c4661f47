// Package mapbox resolves place names with the Mapbox geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/pkg/telemetry"
)

const defaultBaseURL = "https://api.mapbox.com"

// Geocoder implements ports.Geocoder for Mapbox places.
type Geocoder struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

// NewGeocoder returns a geocoder, or domain.ErrMissingToken when token is
// empty.
func NewGeocoder(baseURL, token string, rps int) (*Geocoder, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrMissingToken
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if rps <= 0 {
		rps = 5
	}
	return &Geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		tracer:     telemetry.Tracer(),
	}, nil
}

type placesResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Search returns the best place match for query, or nil when there is none.
func (g *Geocoder) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	ctx, span := g.tracer.Start(ctx, "mapbox.Search", trace.WithAttributes(
		telemetry.AttrUpstream.String(g.baseURL),
		telemetry.AttrQuery.String(query),
	))
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", g.token)
	params.Set("limit", "1")
	params.Set("types", "place")
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", g.baseURL, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode")
		return nil, fmt.Errorf("%w: geocode: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: geocode: status %d", domain.ErrUpstream, resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode geocode response: %v", domain.ErrUpstream, err)
	}
	if len(body.Features) == 0 || len(body.Features[0].Center) < 2 {
		return nil, nil
	}

	f := body.Features[0]
	return &domain.SearchResult{
		Name:      f.PlaceName,
		Longitude: f.Center[0],
		Latitude:  f.Center[1],
	}, nil
}
