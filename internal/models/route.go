package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Route statuses. A route (assignment) binds one vehicle to one bin for
// a single collection trip.
const (
	RouteStatusPending    = "pending"
	RouteStatusInProgress = "in-progress"
	RouteStatusCompleted  = "completed"
	RouteStatusCancelled  = "cancelled"
)

// Path is an ordered sequence of [lat, lon] coordinates, stored as
// JSONB.
type Path [][2]float64

func (p Path) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(Path{})
	}
	return json.Marshal(p)
}

func (p *Path) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported path type %T", src)
	}
}

// Route is a dispatch assignment record.
type Route struct {
	ID             string  `json:"id" db:"id"`
	VehicleID      string  `json:"vehicleId" db:"vehicle_id"`
	BinID          string  `json:"binId" db:"bin_id"`
	StartLatitude  float64 `json:"startLatitude" db:"start_latitude"`
	StartLongitude float64 `json:"startLongitude" db:"start_longitude"`
	RoutePath      Path    `json:"routePath" db:"route_path"`
	DistanceKm     float64 `json:"distanceKm" db:"distance_km"`
	DurationMin    int     `json:"estimatedDurationMin" db:"duration_min"`
	Status         string  `json:"status" db:"status"`
	FallbackRoute  bool    `json:"fallbackRoute" db:"fallback_route"`
	StartedAt      *int64  `json:"-" db:"started_at"`
	CompletedAt    *int64  `json:"-" db:"completed_at"`
	CreatedAt      int64   `json:"-" db:"created_at"`
	UpdatedAt      int64   `json:"-" db:"updated_at"`
}

type RouteResponse struct {
	ID             string  `json:"id"`
	VehicleID      string  `json:"vehicleId"`
	BinID          string  `json:"binId"`
	RoutePath      Path    `json:"routePath"`
	DistanceKm     float64 `json:"distanceKm"`
	DurationMin    int     `json:"estimatedDurationMin"`
	Status         string  `json:"status"`
	FallbackRoute  bool    `json:"fallbackRoute"`
	StartedAtIso   *string `json:"startedAt,omitempty"`
	CompletedAtIso *string `json:"completedAt,omitempty"`
	CreatedAtIso   string  `json:"createdAt"`
}

// Active reports whether the assignment is still in flight.
func (r *Route) Active() bool {
	return r.Status == RouteStatusPending || r.Status == RouteStatusInProgress
}

func (r *Route) ToRouteResponse() RouteResponse {
	resp := RouteResponse{
		ID:            r.ID,
		VehicleID:     r.VehicleID,
		BinID:         r.BinID,
		RoutePath:     r.RoutePath,
		DistanceKm:    r.DistanceKm,
		DurationMin:   r.DurationMin,
		Status:        r.Status,
		FallbackRoute: r.FallbackRoute,
		CreatedAtIso:  time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339),
	}
	if r.StartedAt != nil {
		iso := time.UnixMilli(*r.StartedAt).UTC().Format(time.RFC3339)
		resp.StartedAtIso = &iso
	}
	if r.CompletedAt != nil {
		iso := time.UnixMilli(*r.CompletedAt).UTC().Format(time.RFC3339)
		resp.CompletedAtIso = &iso
	}
	return resp
}
