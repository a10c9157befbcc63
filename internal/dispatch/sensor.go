package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"tozahudud-backend/internal/models"
)

// ErrInvalidDistance rejects readings that cannot come from a working
// ultrasonic sensor.
var ErrInvalidDistance = errors.New("distance must be a finite non-negative number")

// SensorResult is the API-facing outcome of one ingested reading.
type SensorResult struct {
	Reading    *models.SensorReading `json:"reading"`
	Bin        *models.Bin           `json:"bin"`
	Assignment *AssignResult         `json:"assignment,omitempty"`
}

// HandleSensorReading ingests one distance measurement: persist the
// raw reading, apply the fill model to the bin, and on a full reading
// raise an alert and trigger assignment.
func (e *Engine) HandleSensorReading(ctx context.Context, payload models.SensorPayload) (*SensorResult, error) {
	if math.IsNaN(payload.Distance) || math.IsInf(payload.Distance, 0) || payload.Distance < 0 {
		return nil, ErrInvalidDistance
	}

	binID := payload.BinID
	if binID == "" {
		binID = DefaultBinID
	}
	location := payload.Location
	if location == "" {
		location = DefaultLocation
	}
	ts := time.Now().UnixMilli()
	if payload.Timestamp != "" {
		if parsed, err := parseSensorTimestamp(payload.Timestamp); err == nil {
			ts = parsed.UnixMilli()
		} else {
			log.Printf("sensor: unparseable timestamp %q from %s, using server time", payload.Timestamp, binID)
		}
	}

	reading := &models.SensorReading{
		ID:        uuid.NewString(),
		BinID:     binID,
		Location:  location,
		Distance:  payload.Distance,
		IsAlert:   payload.Distance <= FullDistanceThresholdCm,
		Timestamp: ts,
	}
	if err := e.store.InsertReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("persist reading: %w", err)
	}
	e.metrics.RecordSensorReading()
	e.broadcaster.Broadcast(EventSensorData, reading)

	bin, created, err := e.store.EnsureBin(ctx, binID, location)
	if err != nil {
		return nil, fmt.Errorf("provision bin %s: %w", binID, err)
	}
	if created {
		e.logActivity(ctx, models.ActivityBinAdded,
			"Bin registered",
			fmt.Sprintf("Bin %s auto-registered from first sensor reading", binID),
			location, strPtr(binID), nil)
	}

	out, err := e.store.ApplyReading(ctx, binID, payload.Distance)
	if err != nil {
		return nil, fmt.Errorf("apply reading to bin %s: %w", binID, err)
	}
	bin = out.Bin

	e.broadcaster.Broadcast(EventBinUpdate, bin.ToBinResponse())
	e.broadcaster.Broadcast(EventBinStatus, BinStatusEvent{
		BinID:     bin.BinID,
		Status:    bin.Status,
		FillLevel: bin.FillLevel,
	})

	result := &SensorResult{Reading: reading, Bin: bin}
	if !out.IsFull {
		return result, nil
	}

	if !out.WasFull {
		alert := &models.SensorAlert{
			ID:        uuid.NewString(),
			BinID:     bin.BinID,
			Location:  bin.Location,
			Distance:  payload.Distance,
			Message:   fmt.Sprintf("Bin %s is full (%.1f cm)", bin.BinID, payload.Distance),
			Status:    "active",
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := e.store.InsertAlert(ctx, alert); err != nil {
			log.Printf("alert for bin %s not recorded: %v", bin.BinID, err)
		}
		e.logActivity(ctx, models.ActivityBinFull,
			"Bin full",
			fmt.Sprintf("Bin %s reported full at %.1f cm", bin.BinID, payload.Distance),
			bin.Location, strPtr(bin.BinID), nil)
	}

	// Every full reading retries assignment; the already-assigned
	// check in the transaction makes duplicates harmless.
	assignment, err := e.AssignNearestVehicle(ctx, bin.BinID, AssignOptions{Trigger: "sensor"})
	if err != nil {
		return nil, err
	}
	result.Assignment = assignment
	return result, nil
}

// Firmware in the field is inconsistent about timestamp formats, so
// accept the common ones rather than only strict RFC3339.
var sensorTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseSensorTimestamp(raw string) (time.Time, error) {
	var err error
	for _, layout := range sensorTimestampLayouts {
		var parsed time.Time
		if parsed, err = time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, err
}
