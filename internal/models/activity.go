package models

import "time"

// Activity types written by the dispatch engine.
const (
	ActivityBinFull          = "bin_full"
	ActivityBinAdded         = "bin_added"
	ActivityDispatchAssigned = "dispatch_assigned"
	ActivityDispatchTimeout  = "dispatch_timeout"
	ActivityBinCleaned       = "bin_cleaned"
)

// Activity is a best-effort audit trail entry.
type Activity struct {
	ID          string  `json:"id" db:"id"`
	Type        string  `json:"type" db:"type"`
	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	BinID       *string `json:"binId,omitempty" db:"bin_id"`
	VehicleID   *string `json:"vehicleId,omitempty" db:"vehicle_id"`
	Location    string  `json:"location" db:"location"`
	CreatedAt   int64   `json:"-" db:"created_at"`
}

type ActivityResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	BinID        *string `json:"binId,omitempty"`
	VehicleID    *string `json:"vehicleId,omitempty"`
	Location     string  `json:"location"`
	Time         string  `json:"time"` // HH:MM
	CreatedAtIso string  `json:"createdAt"`
}

func (a *Activity) ToActivityResponse() ActivityResponse {
	t := time.UnixMilli(a.CreatedAt).UTC()
	return ActivityResponse{
		ID:           a.ID,
		Type:         a.Type,
		Title:        a.Title,
		Description:  a.Description,
		BinID:        a.BinID,
		VehicleID:    a.VehicleID,
		Location:     a.Location,
		Time:         t.Format("15:04"),
		CreatedAtIso: t.Format(time.RFC3339),
	}
}
