package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"routepulse/internal/config"
	"routepulse/internal/pkg/httpclient"
)

const (
	defaultBaseURL = "https://maps.googleapis.com"

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"

	// maxTotalRoutes is the upstream ceiling: one primary plus at most
	// two alternatives.
	maxTotalRoutes = 3

	// maxFallbackDepth bounds the geocode-and-retry fallback to a single
	// retry, never recursive beyond that.
	maxFallbackDepth = 1
)

// RouteRequest describes one directions lookup.
type RouteRequest struct {
	Origin           string
	Destination      string
	Mode             string
	AvoidHighways    bool
	AvoidTolls       bool
	AdditionalRoutes int
}

// Step is one turn instruction within a route leg.
type Step struct {
	Instruction     string   `json:"instruction"`
	DurationSeconds int      `json:"duration_seconds"`
	DistanceMeters  int      `json:"distance_meters"`
	Points          []LatLng `json:"points,omitempty"`
}

// Route is one measured route alternative.
type Route struct {
	Summary         string   `json:"summary"`
	DurationSeconds *int     `json:"duration_seconds"`
	DistanceMeters  *int     `json:"distance_meters"`
	Points          []LatLng `json:"points"`
	Steps           []Step   `json:"steps"`
}

// Client calls the Google Directions and Geocoding APIs. Geocode lookups
// and interactive route previews are cached; the live collection path goes
// through Directions and is never served from the preview cache.
type Client struct {
	http    *httpclient.Client
	apiKey  string
	baseURL string
	logger  *zap.Logger

	geocodeCache *Cache[LatLng]
	reverseCache *Cache[string]
	previewCache *Cache[[]Route]
}

// NewClient builds a maps client from the service configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		http:    httpclient.New().WithTimeout(cfg.Maps.Timeout),
		apiKey:  cfg.Maps.APIKey,
		baseURL: defaultBaseURL,
		logger:  logger,

		geocodeCache: NewCache[LatLng](cfg.Scheduler.GeocodeCacheTTL),
		reverseCache: NewCache[string](cfg.Scheduler.GeocodeCacheTTL),
		previewCache: NewCache[[]Route](cfg.Scheduler.PreviewCacheTTL),
	}
}

// checkKey rejects absent or placeholder credentials before any network call.
func (c *Client) checkKey() error {
	key := strings.TrimSpace(c.apiKey)
	if key == "" || strings.HasPrefix(strings.ToUpper(key), "YOUR_") {
		return ErrMissingAPIKey
	}
	return nil
}

// Directions resolves a route request into zero or more routes. A
// ZERO_RESULTS response triggers the one-shot geocode fallback when at
// least one endpoint is a free-text address.
func (c *Client) Directions(ctx context.Context, req RouteRequest) ([]Route, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}
	return c.fetchRoutes(ctx, req, maxFallbackDepth)
}

// PreviewRoutes is the interactive map-preview variant of Directions,
// served through the preview cache.
func (c *Client) PreviewRoutes(ctx context.Context, req RouteRequest) ([]Route, error) {
	if err := c.checkKey(); err != nil {
		return nil, err
	}

	key := previewCacheKey(req)
	if routes, ok := c.previewCache.Get(key); ok {
		return routes, nil
	}

	routes, err := c.fetchRoutes(ctx, req, maxFallbackDepth)
	if err != nil {
		return nil, err
	}
	c.previewCache.Set(key, routes)
	return routes, nil
}

func previewCacheKey(req RouteRequest) string {
	return strings.Join([]string{
		req.Origin,
		req.Destination,
		normalizeMode(req.Mode),
		strconv.FormatBool(req.AvoidHighways),
		strconv.FormatBool(req.AvoidTolls),
	}, "|")
}

func (c *Client) fetchRoutes(ctx context.Context, req RouteRequest, fallbacksLeft int) ([]Route, error) {
	routes, status, err := c.requestDirections(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != statusZeroResults {
		return routes, nil
	}

	// No route found. If both endpoints are already coordinates there is
	// nothing left to resolve; otherwise geocode and retry once.
	if fallbacksLeft <= 0 || (isCoordinate(req.Origin) && isCoordinate(req.Destination)) {
		return nil, nil
	}

	origin, err := c.resolveEndpoint(ctx, req.Origin)
	if err != nil {
		// An endpoint the geocoder cannot place means there is nothing
		// to record, same as an empty directions answer.
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}
	destination, err := c.resolveEndpoint(ctx, req.Destination)
	if err != nil {
		if errors.Is(err, ErrNoResults) {
			return nil, nil
		}
		return nil, err
	}

	c.logger.Info("No route found, retrying with geocoded endpoints",
		zap.String("origin", origin),
		zap.String("destination", destination))

	req.Origin = origin
	req.Destination = destination
	return c.fetchRoutes(ctx, req, fallbacksLeft-1)
}

// resolveEndpoint turns a free-text address into "lat,lng"; coordinate
// inputs pass through untouched.
func (c *Client) resolveEndpoint(ctx context.Context, location string) (string, error) {
	if isCoordinate(location) {
		return location, nil
	}
	point, err := c.Geocode(ctx, location)
	if err != nil {
		return "", err
	}
	return formatCoordinate(point), nil
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary          string `json:"summary"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Duration          *textValue `json:"duration"`
			DurationInTraffic *textValue `json:"duration_in_traffic"`
			Distance          *textValue `json:"distance"`
			Steps             []struct {
				HTMLInstructions string     `json:"html_instructions"`
				Duration         *textValue `json:"duration"`
				Distance         *textValue `json:"distance"`
				Polyline         struct {
					Points string `json:"points"`
				} `json:"polyline"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *Client) requestDirections(ctx context.Context, req RouteRequest) ([]Route, string, error) {
	mode := normalizeMode(req.Mode)

	params := map[string]string{
		"origin":      req.Origin,
		"destination": req.Destination,
		"mode":        mode,
		"key":         c.apiKey,
	}
	// departure_time unlocks traffic-adjusted durations for driving and
	// correct schedules for transit.
	if mode == "driving" || mode == "transit" {
		params["departure_time"] = "now"
	}
	// Avoid flags only make sense for driving; other modes would have the
	// upstream misinterpret them.
	if mode == "driving" {
		var avoid []string
		if req.AvoidHighways {
			avoid = append(avoid, "highways")
		}
		if req.AvoidTolls {
			avoid = append(avoid, "tolls")
		}
		if len(avoid) > 0 {
			params["avoid"] = strings.Join(avoid, "|")
		}
	}
	if req.AdditionalRoutes > 0 {
		params["alternatives"] = "true"
	}

	var out directionsResponse
	resp, err := c.http.Request().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get(c.baseURL + "/maps/api/directions/json")
	if err != nil {
		return nil, "", fmt.Errorf("directions request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, "", &UpstreamError{Status: resp.Status(), Message: string(resp.Body())}
	}

	switch out.Status {
	case statusOK:
	case statusZeroResults:
		return nil, statusZeroResults, nil
	default:
		return nil, out.Status, &UpstreamError{Status: out.Status, Message: out.ErrorMessage}
	}

	limit := req.AdditionalRoutes + 1
	if limit > maxTotalRoutes {
		limit = maxTotalRoutes
	}
	if limit > len(out.Routes) {
		limit = len(out.Routes)
	}

	routes := make([]Route, 0, limit)
	for _, raw := range out.Routes[:limit] {
		route := Route{
			Summary: raw.Summary,
			Points:  DecodePolyline(raw.OverviewPolyline.Points),
		}
		if len(raw.Legs) > 0 {
			leg := raw.Legs[0]
			// Traffic-adjusted duration wins over free-flow when driving.
			duration := leg.Duration
			if mode == "driving" && leg.DurationInTraffic != nil {
				duration = leg.DurationInTraffic
			}
			if duration != nil {
				v := duration.Value
				route.DurationSeconds = &v
			}
			if leg.Distance != nil {
				v := leg.Distance.Value
				route.DistanceMeters = &v
			}
			for _, rawStep := range leg.Steps {
				step := Step{
					Instruction: rawStep.HTMLInstructions,
					Points:      DecodePolyline(rawStep.Polyline.Points),
				}
				if rawStep.Duration != nil {
					step.DurationSeconds = rawStep.Duration.Value
				}
				if rawStep.Distance != nil {
					step.DistanceMeters = rawStep.Distance.Value
				}
				route.Steps = append(route.Steps, step)
			}
		}
		routes = append(routes, route)
	}
	return routes, statusOK, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location LatLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates, cached for the
// configured geocode TTL.
func (c *Client) Geocode(ctx context.Context, address string) (LatLng, error) {
	if err := c.checkKey(); err != nil {
		return LatLng{}, err
	}

	key := strings.ToLower(strings.TrimSpace(address))
	if point, ok := c.geocodeCache.Get(key); ok {
		return point, nil
	}

	var out geocodeResponse
	resp, err := c.http.Request().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address": address,
			"key":     c.apiKey,
		}).
		SetResult(&out).
		Get(c.baseURL + "/maps/api/geocode/json")
	if err != nil {
		return LatLng{}, fmt.Errorf("geocode request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return LatLng{}, &UpstreamError{Status: resp.Status(), Message: string(resp.Body())}
	}
	if out.Status == statusZeroResults || (out.Status == statusOK && len(out.Results) == 0) {
		return LatLng{}, fmt.Errorf("%w for %q", ErrNoResults, address)
	}
	if out.Status != statusOK {
		return LatLng{}, &UpstreamError{Status: out.Status, Message: out.ErrorMessage}
	}

	point := out.Results[0].Geometry.Location
	c.geocodeCache.Set(key, point)
	return point, nil
}

// ReverseGeocode resolves coordinates to a formatted address, cached on
// the coordinate rounded to 5 decimal places.
func (c *Client) ReverseGeocode(ctx context.Context, point LatLng) (string, error) {
	if err := c.checkKey(); err != nil {
		return "", err
	}

	key := formatCoordinate(point)
	if address, ok := c.reverseCache.Get(key); ok {
		return address, nil
	}

	var out geocodeResponse
	resp, err := c.http.Request().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latlng": key,
			"key":    c.apiKey,
		}).
		SetResult(&out).
		Get(c.baseURL + "/maps/api/geocode/json")
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &UpstreamError{Status: resp.Status(), Message: string(resp.Body())}
	}
	if out.Status == statusZeroResults || (out.Status == statusOK && len(out.Results) == 0) {
		return "", fmt.Errorf("%w for %s", ErrNoResults, key)
	}
	if out.Status != statusOK {
		return "", &UpstreamError{Status: out.Status, Message: out.ErrorMessage}
	}

	address := out.Results[0].FormattedAddress
	c.reverseCache.Set(key, address)
	return address, nil
}

func normalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "walking":
		return "walking"
	case "transit":
		return "transit"
	default:
		return "driving"
	}
}

// ParseLatLng parses a "lat,lng" coordinate pair.
func ParseLatLng(s string) (LatLng, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLng{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLng{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLng{}, false
	}
	return LatLng{Lat: lat, Lng: lng}, true
}

// isCoordinate reports whether location is already a "lat,lng" pair.
func isCoordinate(location string) bool {
	_, ok := ParseLatLng(location)
	return ok
}

func formatCoordinate(point LatLng) string {
	return strconv.FormatFloat(math.Round(point.Lat*1e5)/1e5, 'f', 5, 64) + "," +
		strconv.FormatFloat(math.Round(point.Lng*1e5)/1e5, 'f', 5, 64)
}
