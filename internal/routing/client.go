package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"tozahudud-backend/internal/geo"
)

const (
	defaultBaseURL = "https://router.project-osrm.org/route/v1/driving"

	requestTimeout   = 30 * time.Second
	maxRetries       = 3
	retryDelay       = 2 * time.Second
	fallbackSegments = 10
)

// Result is a planned route. When the routing service is unreachable or
// returns an unusable geometry, Path is a straight-line interpolation
// and UsedFallback is true.
type Result struct {
	Path         [][2]float64 // [lat, lon] pairs
	DistanceKm   float64
	DurationMin  int
	UsedFallback bool
}

// Client talks to an OSRM-compatible routing service. Planning never
// fails outright: after the retries are exhausted it synthesizes a
// straight-line path, so a dead routing service cannot abort a
// dispatch.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bounds     geo.Bounds
	retries    int
	retryDelay time.Duration
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// NewClient creates a routing client. baseURL may be empty to use the
// public OSRM instance.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		bounds:     geo.Samarkand,
		retries:    maxRetries,
		retryDelay: retryDelay,
	}
}

// PlanRoute returns a road-following path from start to end. Inputs are
// clamped into the operating region first; noisy GPS upstream would
// otherwise produce nonsense cross-region routes.
func (c *Client) PlanRoute(ctx context.Context, start, end geo.Point) Result {
	if !c.bounds.Contains(start) || !c.bounds.Contains(end) {
		log.Printf("routing: coordinates outside operating region, clamping")
		start = c.bounds.Clamp(start)
		end = c.bounds.Clamp(end)
	}

	url := fmt.Sprintf("%s/%f,%f;%f,%f?overview=full&geometries=geojson&continue_straight=true",
		c.baseURL, start.Longitude, start.Latitude, end.Longitude, end.Latitude)

	for attempt := 1; attempt <= c.retries; attempt++ {
		res, err := c.fetch(ctx, url)
		if err == nil {
			return res
		}
		log.Printf("routing: attempt %d/%d failed: %v", attempt, c.retries, err)

		if attempt < c.retries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return c.fallback(start, end)
			}
		}
	}

	log.Printf("routing: all attempts failed, using straight-line fallback")
	return c.fallback(start, end)
}

func (c *Client) fetch(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var parsed osrmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return Result{}, fmt.Errorf("no route (code %q)", parsed.Code)
	}

	route := parsed.Routes[0]
	if len(route.Geometry.Coordinates) < 2 {
		return Result{}, fmt.Errorf("unusable geometry (%d points)", len(route.Geometry.Coordinates))
	}

	// OSRM returns geojson [lon, lat]; the rest of the system speaks
	// [lat, lon].
	path := make([][2]float64, 0, len(route.Geometry.Coordinates))
	for _, coord := range route.Geometry.Coordinates {
		if len(coord) < 2 {
			continue
		}
		path = append(path, [2]float64{coord[1], coord[0]})
	}
	if len(path) < 2 {
		return Result{}, fmt.Errorf("unusable geometry after conversion")
	}

	return Result{
		Path:        path,
		DistanceKm:  route.Distance / 1000,
		DurationMin: durationMin(route.Duration),
	}, nil
}

func (c *Client) fallback(start, end geo.Point) Result {
	distance := geo.DistanceKm(start, end)
	return Result{
		Path:         geo.Interpolate(start, end, fallbackSegments),
		DistanceKm:   distance,
		DurationMin:  geo.EstimateDurationMin(distance),
		UsedFallback: true,
	}
}

func durationMin(seconds float64) int {
	min := int(seconds / 60)
	if min < 1 {
		min = 1
	}
	return min
}
