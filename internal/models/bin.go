package models

import "time"

// Bin statuses. A bin only ever leaves FULL through the completion
// protocol, never through a sensor reading.
const (
	BinStatusEmpty = "EMPTY"
	BinStatusFull  = "FULL"
)

type Bin struct {
	ID               string   `json:"id" db:"id"`
	BinID            string   `json:"binId" db:"bin_id"` // stable external code, e.g. ESP32-IBN-SINO
	Location         string   `json:"location" db:"location"`
	District         string   `json:"district" db:"district"`
	Latitude         float64  `json:"latitude" db:"latitude"`
	Longitude        float64  `json:"longitude" db:"longitude"`
	Status           string   `json:"status" db:"status"`
	FillLevel        int      `json:"fillLevel" db:"fill_level"` // 0-100
	Capacity         int      `json:"capacity" db:"capacity"`    // liters
	LastDistance     *float64 `json:"lastDistance,omitempty" db:"last_distance"`
	IsOnline         bool     `json:"isOnline" db:"is_online"`
	BatteryLevel     int      `json:"batteryLevel" db:"battery_level"`
	LastCleaningTime *int64   `json:"-" db:"last_cleaning_time"` // unix millis
	TotalCleanings   int      `json:"totalCleanings" db:"total_cleanings"`
	CreatedAt        int64    `json:"-" db:"created_at"`
	UpdatedAt        int64    `json:"-" db:"updated_at"`
}

// BinResponse is the wire shape with ISO timestamps and the
// [lat, lon] position array the map frontend consumes.
type BinResponse struct {
	ID              string     `json:"id"`
	BinID           string     `json:"binId"`
	Code            string     `json:"code"`
	Location        string     `json:"locationName"`
	District        string     `json:"district"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Position        [2]float64 `json:"location"`
	Status          string     `json:"status"`
	FillLevel       int        `json:"fillLevel"`
	Capacity        int        `json:"capacity"`
	LastDistance    float64    `json:"lastDistance"`
	IsOnline        bool       `json:"isOnline"`
	BatteryLevel    int        `json:"batteryLevel"`
	TotalCleanings  int        `json:"totalCleanings"`
	LastCleaningIso *string    `json:"lastCleaningTime,omitempty"`
	UpdatedAtIso    string     `json:"updatedAt"`
}

// CreateBinRequest is the request body for POST /api/bins.
type CreateBinRequest struct {
	BinID     string  `json:"binId"`
	Location  string  `json:"location"`
	District  string  `json:"district"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Capacity  *int    `json:"capacity,omitempty"`
}

// UpdateBinRequest is the request body for PATCH /api/bins/{binId}.
// Status and fill level are owned by the dispatch engine and cannot be
// set here.
type UpdateBinRequest struct {
	Location  *string  `json:"location,omitempty"`
	District  *string  `json:"district,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Capacity  *int     `json:"capacity,omitempty"`
}

func (b *Bin) ToBinResponse() BinResponse {
	resp := BinResponse{
		ID:             b.ID,
		BinID:          b.BinID,
		Code:           b.BinID,
		Location:       b.Location,
		District:       b.District,
		Latitude:       b.Latitude,
		Longitude:      b.Longitude,
		Position:       [2]float64{b.Latitude, b.Longitude},
		Status:         b.Status,
		FillLevel:      b.FillLevel,
		Capacity:       b.Capacity,
		IsOnline:       b.IsOnline,
		BatteryLevel:   b.BatteryLevel,
		TotalCleanings: b.TotalCleanings,
		UpdatedAtIso:   time.UnixMilli(b.UpdatedAt).UTC().Format(time.RFC3339),
	}
	if b.LastDistance != nil {
		resp.LastDistance = *b.LastDistance
	}
	if b.LastCleaningTime != nil {
		iso := time.UnixMilli(*b.LastCleaningTime).UTC().Format(time.RFC3339)
		resp.LastCleaningIso = &iso
	}
	return resp
}
