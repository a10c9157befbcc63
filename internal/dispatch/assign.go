package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"tozahudud-backend/internal/geo"
	"tozahudud-backend/internal/models"
)

// AssignOptions tunes one assignment attempt.
type AssignOptions struct {
	// Trigger names what started the attempt: "sensor", "manual" or
	// "timeout-reassign".
	Trigger string
	// ExcludeVehicleIDs removes candidates from consideration, used to
	// keep a just-timed-out vehicle from being picked again.
	ExcludeVehicleIDs []string
}

// AssignResult is the API-facing outcome of an assignment attempt.
type AssignResult struct {
	Success       bool        `json:"success"`
	Reason        Reason      `json:"reason"`
	AssignmentID  string      `json:"assignmentId,omitempty"`
	BinID         string      `json:"binId,omitempty"`
	VehicleID     string      `json:"vehicleId,omitempty"`
	DriverName    string      `json:"driverName,omitempty"`
	RoutePath     models.Path `json:"routePath,omitempty"`
	DistanceKm    float64     `json:"distanceKm,omitempty"`
	DurationMin   int         `json:"estimatedDurationMin,omitempty"`
	FallbackRoute bool        `json:"fallbackRoute,omitempty"`
}

// AssignNearestVehicle dispatches the nearest free vehicle to a full
// bin. The decision commits atomically before the route service is
// contacted, so a slow or dead road service can delay the geometry but
// never the assignment itself.
func (e *Engine) AssignNearestVehicle(ctx context.Context, binID string, opts AssignOptions) (*AssignResult, error) {
	if opts.Trigger == "" {
		opts.Trigger = "manual"
	}

	out, err := e.store.AssignNearestVehicle(ctx, binID, opts.ExcludeVehicleIDs)
	if err != nil {
		return nil, fmt.Errorf("assignment transaction for bin %s: %w", binID, err)
	}
	e.metrics.RecordAssignment(opts.Trigger, string(out.Reason))

	switch out.Reason {
	case ReasonAlreadyAssigned:
		// Duplicate trigger while a vehicle is en route. Idempotent
		// success, nothing to broadcast.
		res := &AssignResult{Success: true, Reason: ReasonAlreadyAssigned, BinID: binID}
		if out.Vehicle != nil {
			res.VehicleID = out.Vehicle.VehicleID
			res.DriverName = out.Vehicle.DriverName
		}
		return res, nil
	case ReasonAssigned:
		// fall through to phase two
	default:
		return &AssignResult{Success: false, Reason: out.Reason, BinID: binID}, nil
	}

	bin, vehicle, route := out.Bin, out.Vehicle, out.Route

	// Phase two: replace the provisional straight-line geometry with a
	// planned road route. The planner falls back internally, and even
	// a failed persistence step leaves a valid pending assignment.
	planned := e.planner.PlanRoute(ctx,
		geo.Point{Latitude: vehicle.Latitude, Longitude: vehicle.Longitude},
		geo.Point{Latitude: bin.Latitude, Longitude: bin.Longitude},
	)
	if planned.UsedFallback {
		e.metrics.RecordRouteFallback()
	}
	updated, err := e.store.StartRoute(ctx, route.ID, planned.Path, planned.DistanceKm, planned.DurationMin, planned.UsedFallback)
	if err != nil {
		log.Printf("route %s: keeping provisional geometry, start failed: %v", route.ID, err)
	} else {
		route = updated
	}

	e.scheduleTimeout(route.ID, vehicle.VehicleID, bin.BinID)

	e.broadcaster.Broadcast(EventDispatchAssigned, DispatchAssignedEvent{
		AssignmentID:  route.ID,
		BinID:         bin.BinID,
		VehicleID:     vehicle.VehicleID,
		DriverName:    vehicle.DriverName,
		Trigger:       opts.Trigger,
		RoutePath:     route.RoutePath,
		DistanceKm:    route.DistanceKm,
		DurationMin:   route.DurationMin,
		FallbackRoute: route.FallbackRoute,
		AssignedAt:    time.Now().UnixMilli(),
	})
	e.broadcaster.Broadcast(EventVehicleState, VehicleStateEvent{
		VehicleID:    vehicle.VehicleID,
		Status:       vehicle.Status,
		IsPatrolling: false,
		TargetBinID:  vehicle.TargetBinID,
		RouteID:      strPtr(route.ID),
		CurrentRoute: route.RoutePath,
	})

	e.logActivity(ctx, models.ActivityDispatchAssigned,
		"Vehicle dispatched",
		fmt.Sprintf("%s (%s) dispatched to bin %s, %.2f km", vehicle.VehicleID, vehicle.DriverName, bin.BinID, route.DistanceKm),
		bin.Location, strPtr(bin.BinID), strPtr(vehicle.VehicleID))

	log.Printf("dispatch: %s -> %s (%.2f km, %d min, fallback=%v, trigger=%s)",
		vehicle.VehicleID, bin.BinID, route.DistanceKm, route.DurationMin, route.FallbackRoute, opts.Trigger)

	return &AssignResult{
		Success:       true,
		Reason:        ReasonAssigned,
		AssignmentID:  route.ID,
		BinID:         bin.BinID,
		VehicleID:     vehicle.VehicleID,
		DriverName:    vehicle.DriverName,
		RoutePath:     route.RoutePath,
		DistanceKm:    route.DistanceKm,
		DurationMin:   route.DurationMin,
		FallbackRoute: route.FallbackRoute,
	}, nil
}
