package dispatch

import (
	"context"

	"tozahudud-backend/internal/models"
)

// Reason explains why a dispatch operation succeeded or was refused.
// The values are stable strings surfaced to API clients.
type Reason string

const (
	ReasonAssigned            Reason = "assigned"
	ReasonBinNotFound         Reason = "bin-not-found"
	ReasonBinNotFull          Reason = "bin-not-full"
	ReasonAlreadyAssigned     Reason = "already-assigned"
	ReasonNoAvailableVehicles Reason = "no-available-vehicles"
	ReasonNoTargetBin         Reason = "vehicle-has-no-target-bin"
	ReasonCompleted           Reason = "completed"
)

// ReadingOutcome is the result of applying one sensor reading to a
// bin's persisted state.
type ReadingOutcome struct {
	Bin *models.Bin
	// WasFull is the bin's status before this reading.
	WasFull bool
	// IsFull reports whether this reading measured at or below the
	// full threshold.
	IsFull bool
}

// AssignOutcome is the result of the transactional half of an
// assignment attempt. Reason is ReasonAssigned on success; any other
// value means no state was mutated, except ReasonAlreadyAssigned which
// carries the vehicle already working the bin.
type AssignOutcome struct {
	Reason  Reason
	Bin     *models.Bin
	Vehicle *models.Vehicle
	Route   *models.Route
}

// CompleteOutcome is the result of the transactional half of a
// cleaning completion.
type CompleteOutcome struct {
	Reason          Reason
	Bin             *models.Bin
	Vehicle         *models.Vehicle
	Route           *models.Route
	FillLevelBefore int
}

// CancelOutcome is the result of cancelling a timed-out assignment.
// Cancelled is false when the route had already finished, in which
// case nothing was mutated.
type CancelOutcome struct {
	Cancelled    bool
	VehicleReset bool
	Route        *models.Route
	Vehicle      *models.Vehicle
}

// Store is the transactional boundary of the dispatch engine. Every
// method that mutates assignment state runs as a single atomic unit
// with row-level locking; the engine layers external calls (route
// planning, broadcasting, activity logging) on top and never holds a
// transaction open across them.
//
// Lock order inside implementations is bin before vehicle before
// route, everywhere.
type Store interface {
	// EnsureBin returns the bin with the given device id, creating it
	// with default metadata when it does not exist yet.
	EnsureBin(ctx context.Context, binID, location string) (bin *models.Bin, created bool, err error)

	// ApplyReading locks the bin and applies the fill model for one
	// sensor distance.
	ApplyReading(ctx context.Context, binID string, distanceCm float64) (*ReadingOutcome, error)

	// AssignNearestVehicle runs the assignment transaction: verify the
	// bin is FULL and unassigned, pick the nearest free vehicle not in
	// exclude, mark it moving and create a provisional route.
	AssignNearestVehicle(ctx context.Context, binID string, exclude []string) (*AssignOutcome, error)

	// StartRoute replaces a provisional route's geometry with the
	// planned path and moves it to in-progress.
	StartRoute(ctx context.Context, routeID string, path models.Path, distanceKm float64, durationMin int, fallback bool) (*models.Route, error)

	// CompleteCleaning runs the completion transaction for a vehicle.
	// An empty binID means "the vehicle's current target".
	CompleteCleaning(ctx context.Context, vehicleID, binID string) (*CompleteOutcome, error)

	// CancelAssignment cancels a still-active route and frees its
	// vehicle if the vehicle is still bound to the route's bin.
	CancelAssignment(ctx context.Context, routeID string) (*CancelOutcome, error)

	// ActiveRoutes lists routes in the pending or in-progress state.
	ActiveRoutes(ctx context.Context) ([]models.Route, error)

	// UpdateVehiclePosition stores a GPS fix and returns the updated
	// vehicle.
	UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64) (*models.Vehicle, error)

	GetBin(ctx context.Context, binID string) (*models.Bin, error)

	InsertReading(ctx context.Context, r *models.SensorReading) error
	InsertAlert(ctx context.Context, a *models.SensorAlert) error
	InsertCleaning(ctx context.Context, c *models.Cleaning) error
	InsertActivity(ctx context.Context, a *models.Activity) error
}
