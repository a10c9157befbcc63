package models

import "time"

// Vehicle statuses. targetBinId is non-null exactly when the vehicle is
// moving or cleaning; the dispatch engine is the only writer of status
// and target.
const (
	VehicleStatusIdle     = "idle"
	VehicleStatusMoving   = "moving"
	VehicleStatusCleaning = "cleaning"
	VehicleStatusStopped  = "stopped"
)

type Vehicle struct {
	ID               string  `json:"id" db:"id"`
	VehicleID        string  `json:"vehicleId" db:"vehicle_id"` // stable external code, e.g. VEH-001
	DriverName       string  `json:"driverName" db:"driver_name"`
	Latitude         float64 `json:"latitude" db:"latitude"`
	Longitude        float64 `json:"longitude" db:"longitude"`
	Status           string  `json:"status" db:"status"`
	IsMoving         bool    `json:"isMoving" db:"is_moving"`
	TargetBinID      *string `json:"targetBinId" db:"target_bin_id"`
	TotalCleanings   int     `json:"totalCleanings" db:"total_cleanings"`
	TotalDistanceKm  float64 `json:"totalDistanceKm" db:"total_distance_km"`
	LastCleaningTime *int64  `json:"-" db:"last_cleaning_time"`
	CreatedAt        int64   `json:"-" db:"created_at"`
	UpdatedAt        int64   `json:"-" db:"updated_at"`
}

type VehicleResponse struct {
	ID              string     `json:"id"`
	VehicleID       string     `json:"vehicleId"`
	DriverName      string     `json:"driverName"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Position        [2]float64 `json:"position"`
	Status          string     `json:"status"`
	IsMoving        bool       `json:"isMoving"`
	IsPatrolling    bool       `json:"isPatrolling"`
	TargetBinID     *string    `json:"targetBinId"`
	TotalCleanings  int        `json:"totalCleanings"`
	TotalDistanceKm float64    `json:"totalDistanceKm"`
	LastCleaningIso *string    `json:"lastCleaningTime,omitempty"`
	RouteID         *string    `json:"routeId"`
	CurrentRoute    Path       `json:"currentRoute"`
}

type CreateVehicleRequest struct {
	VehicleID  string  `json:"vehicleId"`
	DriverName string  `json:"driverName"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

type UpdateVehicleRequest struct {
	DriverName *string `json:"driverName,omitempty"`
}

// PositionUpdateRequest is the tracker payload for POST
// /api/vehicles/{vehicleId}/position.
type PositionUpdateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CompleteCleaningRequest is the driver-side signal that the bin has
// been emptied.
type CompleteCleaningRequest struct {
	BinID string `json:"binId,omitempty"`
	Notes string `json:"notes,omitempty"`
}

func (v *Vehicle) ToVehicleResponse() VehicleResponse {
	resp := VehicleResponse{
		ID:              v.ID,
		VehicleID:       v.VehicleID,
		DriverName:      v.DriverName,
		Latitude:        v.Latitude,
		Longitude:       v.Longitude,
		Position:        [2]float64{v.Latitude, v.Longitude},
		Status:          v.Status,
		IsMoving:        v.IsMoving,
		IsPatrolling:    !v.IsMoving && v.TargetBinID == nil,
		TargetBinID:     v.TargetBinID,
		TotalCleanings:  v.TotalCleanings,
		TotalDistanceKm: v.TotalDistanceKm,
	}
	if v.LastCleaningTime != nil {
		iso := time.UnixMilli(*v.LastCleaningTime).UTC().Format(time.RFC3339)
		resp.LastCleaningIso = &iso
	}
	return resp
}
