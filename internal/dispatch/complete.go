package dispatch

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"tozahudud-backend/internal/geo"
	"tozahudud-backend/internal/models"
)

// CompleteResult is the API-facing outcome of a cleaning completion.
type CompleteResult struct {
	Success  bool                    `json:"success"`
	Reason   Reason                  `json:"reason"`
	Bin      *models.BinResponse     `json:"bin,omitempty"`
	Vehicle  *models.VehicleResponse `json:"vehicle,omitempty"`
	Cleaning *models.Cleaning        `json:"cleaning,omitempty"`
}

// CompleteCleaning finishes a vehicle's current job: the bin goes back
// to EMPTY at the baseline fill level, the vehicle returns to patrol
// and the route closes. binID may be empty to mean the vehicle's
// current target.
func (e *Engine) CompleteCleaning(ctx context.Context, vehicleID, binID, notes string) (*CompleteResult, error) {
	out, err := e.store.CompleteCleaning(ctx, vehicleID, binID)
	if err != nil {
		return nil, fmt.Errorf("completion transaction for vehicle %s: %w", vehicleID, err)
	}
	if out.Reason != ReasonCompleted {
		return &CompleteResult{Success: false, Reason: out.Reason}, nil
	}

	bin, vehicle, route := out.Bin, out.Vehicle, out.Route
	if route != nil {
		e.cancelTimeout(route.ID)
	}
	e.metrics.RecordCleaning()

	now := time.Now().UnixMilli()
	cleaning := &models.Cleaning{
		ID:              uuid.NewString(),
		BinID:           bin.BinID,
		VehicleID:       vehicle.VehicleID,
		DriverName:      vehicle.DriverName,
		BinLocation:     bin.Location,
		FillLevelBefore: out.FillLevelBefore,
		FillLevelAfter:  bin.FillLevel,
		Notes:           notes,
		CleanedAt:       now,
	}
	if route != nil {
		cleaning.DistanceKm = route.DistanceKm
		cleaning.DurationMin = elapsedMinutes(route, now)
	} else {
		cleaning.DistanceKm = geo.DistanceKm(
			geo.Point{Latitude: vehicle.Latitude, Longitude: vehicle.Longitude},
			geo.Point{Latitude: bin.Latitude, Longitude: bin.Longitude},
		)
	}
	if err := e.store.InsertCleaning(ctx, cleaning); err != nil {
		log.Printf("cleaning history for bin %s not recorded: %v", bin.BinID, err)
		cleaning = nil
	}

	e.broadcaster.Broadcast(EventBinStatus, BinStatusEvent{
		BinID:     bin.BinID,
		Status:    bin.Status,
		FillLevel: bin.FillLevel,
	})
	e.broadcaster.Broadcast(EventBinUpdate, bin.ToBinResponse())
	e.broadcaster.Broadcast(EventVehicleState, VehicleStateEvent{
		VehicleID:    vehicle.VehicleID,
		Status:       vehicle.Status,
		IsPatrolling: true,
		TargetBinID:  nil,
		CompletedAt:  &now,
	})
	e.broadcaster.Broadcast(EventVehiclePosition, VehiclePositionEvent{
		VehicleID:   vehicle.VehicleID,
		Position:    [2]float64{vehicle.Latitude, vehicle.Longitude},
		TargetBinID: nil,
	})

	e.logActivity(ctx, models.ActivityBinCleaned,
		"Bin cleaned",
		fmt.Sprintf("%s (%s) cleaned bin %s", vehicle.VehicleID, vehicle.DriverName, bin.BinID),
		bin.Location, strPtr(bin.BinID), strPtr(vehicle.VehicleID))

	log.Printf("cleaning complete: %s emptied %s", vehicle.VehicleID, bin.BinID)

	binResp := bin.ToBinResponse()
	vehicleResp := vehicle.ToVehicleResponse()
	return &CompleteResult{
		Success:  true,
		Reason:   ReasonCompleted,
		Bin:      &binResp,
		Vehicle:  &vehicleResp,
		Cleaning: cleaning,
	}, nil
}

// UpdateVehiclePosition stores a GPS fix and, when the vehicle has
// reached its target bin, runs the completion protocol.
func (e *Engine) UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64) (*models.Vehicle, error) {
	vehicle, err := e.store.UpdateVehiclePosition(ctx, vehicleID, lat, lon)
	if err != nil {
		return nil, err
	}

	e.broadcaster.Broadcast(EventVehiclePosition, VehiclePositionEvent{
		VehicleID:   vehicle.VehicleID,
		Position:    [2]float64{vehicle.Latitude, vehicle.Longitude},
		TargetBinID: vehicle.TargetBinID,
	})

	if vehicle.TargetBinID == nil {
		return vehicle, nil
	}
	bin, err := e.store.GetBin(ctx, *vehicle.TargetBinID)
	if err != nil {
		log.Printf("arrival check for %s: %v", vehicleID, err)
		return vehicle, nil
	}
	dist := geo.DistanceKm(
		geo.Point{Latitude: vehicle.Latitude, Longitude: vehicle.Longitude},
		geo.Point{Latitude: bin.Latitude, Longitude: bin.Longitude},
	)
	if dist > ArrivalRadiusKm {
		return vehicle, nil
	}

	log.Printf("%s arrived at %s (%.0f m)", vehicle.VehicleID, bin.BinID, dist*1000)
	if _, err := e.CompleteCleaning(ctx, vehicleID, bin.BinID, "Arrived at bin"); err != nil {
		log.Printf("auto-completion for %s: %v", vehicleID, err)
	}
	return vehicle, nil
}

func elapsedMinutes(route *models.Route, nowMillis int64) int {
	if route.StartedAt == nil {
		return route.DurationMin
	}
	minutes := int(math.Round(float64(nowMillis-*route.StartedAt) / 60000))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
