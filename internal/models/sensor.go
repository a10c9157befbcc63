package models

import "time"

// SensorReading is an append-only record of one distance measurement.
type SensorReading struct {
	ID        string  `json:"id" db:"id"`
	BinID     string  `json:"binId" db:"bin_id"`
	Location  string  `json:"location" db:"location"`
	Distance  float64 `json:"distance" db:"distance"` // cm
	IsAlert   bool    `json:"isAlert" db:"is_alert"`
	Timestamp int64   `json:"-" db:"timestamp"`
}

type SensorReadingResponse struct {
	ID        string  `json:"id"`
	BinID     string  `json:"binId"`
	Location  string  `json:"location"`
	Distance  float64 `json:"distance"`
	IsAlert   bool    `json:"isAlert"`
	Timestamp string  `json:"timestamp"`
}

// SensorAlert is created on the transition of a bin into FULL.
type SensorAlert struct {
	ID        string  `json:"id" db:"id"`
	BinID     string  `json:"binId" db:"bin_id"`
	Location  string  `json:"location" db:"location"`
	Distance  float64 `json:"distance" db:"distance"`
	Message   string  `json:"message" db:"message"`
	Status    string  `json:"status" db:"status"` // 'active' or 'resolved'
	CreatedAt int64   `json:"-" db:"created_at"`
}

// SensorPayload is the inbound ESP32 payload.
type SensorPayload struct {
	Distance  float64 `json:"distance"`
	BinID     string  `json:"binId,omitempty"`
	Location  string  `json:"location,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"` // ISO 8601, optional
}

func (r *SensorReading) ToSensorReadingResponse() SensorReadingResponse {
	return SensorReadingResponse{
		ID:        r.ID,
		BinID:     r.BinID,
		Location:  r.Location,
		Distance:  r.Distance,
		IsAlert:   r.IsAlert,
		Timestamp: time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
	}
}
