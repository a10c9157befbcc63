package models

import "time"

// Cleaning is a history record written after the completion protocol
// commits. Writing it is best effort and never rolls back a completed
// cleaning.
type Cleaning struct {
	ID              string  `json:"id" db:"id"`
	BinID           string  `json:"binId" db:"bin_id"`
	VehicleID       string  `json:"vehicleId" db:"vehicle_id"`
	DriverName      string  `json:"driverName" db:"driver_name"`
	BinLocation     string  `json:"binLocation" db:"bin_location"`
	FillLevelBefore int     `json:"fillLevelBefore" db:"fill_level_before"`
	FillLevelAfter  int     `json:"fillLevelAfter" db:"fill_level_after"`
	DistanceKm      float64 `json:"distanceTraveled" db:"distance_km"`
	DurationMin     int     `json:"durationMinutes" db:"duration_min"`
	Notes           string  `json:"notes" db:"notes"`
	CleanedAt       int64   `json:"-" db:"cleaned_at"`
}

type CleaningResponse struct {
	ID              string  `json:"id"`
	BinID           string  `json:"binId"`
	VehicleID       string  `json:"vehicleId"`
	DriverName      string  `json:"driverName"`
	BinLocation     string  `json:"binLocation"`
	FillLevelBefore int     `json:"fillLevelBefore"`
	FillLevelAfter  int     `json:"fillLevelAfter"`
	DistanceKm      float64 `json:"distanceTraveled"`
	DurationMin     int     `json:"durationMinutes"`
	Notes           string  `json:"notes"`
	CleanedAtIso    string  `json:"cleanedAt"`
}

func (c *Cleaning) ToCleaningResponse() CleaningResponse {
	return CleaningResponse{
		ID:              c.ID,
		BinID:           c.BinID,
		VehicleID:       c.VehicleID,
		DriverName:      c.DriverName,
		BinLocation:     c.BinLocation,
		FillLevelBefore: c.FillLevelBefore,
		FillLevelAfter:  c.FillLevelAfter,
		DistanceKm:      c.DistanceKm,
		DurationMin:     c.DurationMin,
		Notes:           c.Notes,
		CleanedAtIso:    time.UnixMilli(c.CleanedAt).UTC().Format(time.RFC3339),
	}
}
