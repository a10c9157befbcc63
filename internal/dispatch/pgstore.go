package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tozahudud-backend/internal/geo"
	"tozahudud-backend/internal/models"
)

const (
	binColumns = `id, bin_id, location, district, latitude, longitude, status, fill_level,
		capacity, last_distance, is_online, battery_level, last_cleaning_time,
		total_cleanings, created_at, updated_at`
	vehicleColumns = `id, vehicle_id, driver_name, latitude, longitude, status, is_moving,
		target_bin_id, total_cleanings, total_distance_km, last_cleaning_time,
		created_at, updated_at`
	routeColumns = `id, vehicle_id, bin_id, start_latitude, start_longitude, route_path,
		distance_km, duration_min, status, fallback_route, started_at, completed_at,
		created_at, updated_at`
)

// PGStore implements Store on PostgreSQL. All multi-row operations
// take row locks in a fixed order (bin, then vehicle, then route) so
// concurrent protocol runs serialize instead of deadlocking.
type PGStore struct {
	db *sqlx.DB
}

func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) EnsureBin(ctx context.Context, binID, location string) (*models.Bin, bool, error) {
	var bin models.Bin
	err := s.db.GetContext(ctx, &bin,
		`SELECT `+binColumns+` FROM bins WHERE bin_id = $1`, binID)
	if err == nil {
		return &bin, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := time.Now().UnixMilli()
	bin = models.Bin{
		ID:           uuid.NewString(),
		BinID:        binID,
		Location:     location,
		District:     "Samarqand",
		Latitude:     DefaultLatitude,
		Longitude:    DefaultLongitude,
		Status:       models.BinStatusEmpty,
		FillLevel:    EmptyFillLevel,
		Capacity:     DefaultCapacity,
		IsOnline:     true,
		BatteryLevel: 100,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO bins (`+binColumns+`)
		 VALUES (:id, :bin_id, :location, :district, :latitude, :longitude, :status,
		         :fill_level, :capacity, :last_distance, :is_online, :battery_level,
		         :last_cleaning_time, :total_cleanings, :created_at, :updated_at)`, &bin)
	if err != nil {
		// Two first readings can race the insert; the loser refetches.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			var existing models.Bin
			if err := s.db.GetContext(ctx, &existing,
				`SELECT `+binColumns+` FROM bins WHERE bin_id = $1`, binID); err != nil {
				return nil, false, err
			}
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &bin, true, nil
}

func (s *PGStore) ApplyReading(ctx context.Context, binID string, distanceCm float64) (*ReadingOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bin models.Bin
	if err := tx.GetContext(ctx, &bin,
		`SELECT `+binColumns+` FROM bins WHERE bin_id = $1 FOR UPDATE`, binID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bin %s not found", binID)
		}
		return nil, err
	}

	wasFull := bin.Status == models.BinStatusFull
	status, fill := NextFillState(bin.Status, bin.FillLevel, distanceCm)

	var updated models.Bin
	if err := tx.GetContext(ctx, &updated,
		`UPDATE bins
		 SET status = $2, fill_level = $3, last_distance = $4, is_online = TRUE, updated_at = $5
		 WHERE bin_id = $1
		 RETURNING `+binColumns, binID, status, fill, distanceCm, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ReadingOutcome{
		Bin:     &updated,
		WasFull: wasFull,
		IsFull:  distanceCm <= FullDistanceThresholdCm,
	}, nil
}

func (s *PGStore) AssignNearestVehicle(ctx context.Context, binID string, exclude []string) (*AssignOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bin models.Bin
	if err := tx.GetContext(ctx, &bin,
		`SELECT `+binColumns+` FROM bins WHERE bin_id = $1 FOR UPDATE`, binID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &AssignOutcome{Reason: ReasonBinNotFound}, nil
		}
		return nil, err
	}
	if bin.Status != models.BinStatusFull {
		return &AssignOutcome{Reason: ReasonBinNotFull, Bin: &bin}, nil
	}

	// Any vehicle bound to the bin counts as an active assignment,
	// including one an operator has stopped mid-route.
	var existing models.Vehicle
	err = tx.GetContext(ctx, &existing,
		`SELECT `+vehicleColumns+` FROM vehicles
		 WHERE target_bin_id = $1
		 ORDER BY vehicle_id LIMIT 1 FOR UPDATE`, binID)
	if err == nil {
		return &AssignOutcome{Reason: ReasonAlreadyAssigned, Bin: &bin, Vehicle: &existing}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles
		WHERE status = 'idle' AND is_moving = FALSE AND target_bin_id IS NULL`
	args := []interface{}{}
	if len(exclude) > 0 {
		query += ` AND vehicle_id NOT IN (?)`
		query, args, err = sqlx.In(query, exclude)
		if err != nil {
			return nil, err
		}
		query = tx.Rebind(query)
	}
	query += ` ORDER BY vehicle_id FOR UPDATE`

	var candidates []models.Vehicle
	if err := tx.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &AssignOutcome{Reason: ReasonNoAvailableVehicles, Bin: &bin}, nil
	}

	binPoint := geo.Point{Latitude: bin.Latitude, Longitude: bin.Longitude}
	nearest := candidates[0]
	best := geo.DistanceKm(geo.Point{Latitude: nearest.Latitude, Longitude: nearest.Longitude}, binPoint)
	for _, v := range candidates[1:] {
		if d := geo.DistanceKm(geo.Point{Latitude: v.Latitude, Longitude: v.Longitude}, binPoint); d < best {
			nearest, best = v, d
		}
	}

	now := time.Now().UnixMilli()
	var vehicle models.Vehicle
	if err := tx.GetContext(ctx, &vehicle,
		`UPDATE vehicles
		 SET status = 'moving', is_moving = TRUE, target_bin_id = $2, updated_at = $3
		 WHERE vehicle_id = $1
		 RETURNING `+vehicleColumns, nearest.VehicleID, binID, now); err != nil {
		return nil, err
	}

	// Provisional route: straight line until the planner reports back.
	route := models.Route{
		ID:             uuid.NewString(),
		VehicleID:      vehicle.VehicleID,
		BinID:          bin.BinID,
		StartLatitude:  vehicle.Latitude,
		StartLongitude: vehicle.Longitude,
		RoutePath: models.Path{
			{vehicle.Latitude, vehicle.Longitude},
			{bin.Latitude, bin.Longitude},
		},
		DistanceKm:    best,
		DurationMin:   geo.EstimateDurationMin(best),
		Status:        models.RouteStatusPending,
		FallbackRoute: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO routes (`+routeColumns+`)
		 VALUES (:id, :vehicle_id, :bin_id, :start_latitude, :start_longitude, :route_path,
		         :distance_km, :duration_min, :status, :fallback_route, :started_at,
		         :completed_at, :created_at, :updated_at)`, &route); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &AssignOutcome{Reason: ReasonAssigned, Bin: &bin, Vehicle: &vehicle, Route: &route}, nil
}

func (s *PGStore) StartRoute(ctx context.Context, routeID string, path models.Path, distanceKm float64, durationMin int, fallback bool) (*models.Route, error) {
	now := time.Now().UnixMilli()
	var route models.Route
	err := s.db.GetContext(ctx, &route,
		`UPDATE routes
		 SET route_path = $2, distance_km = $3, duration_min = $4, fallback_route = $5,
		     status = 'in-progress', started_at = $6, updated_at = $6
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+routeColumns,
		routeID, path, distanceKm, durationMin, fallback, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("route %s is not pending", routeID)
		}
		return nil, err
	}
	return &route, nil
}

func (s *PGStore) CompleteCleaning(ctx context.Context, vehicleID, binID string) (*CompleteOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Resolve the target with a plain read first so the bin lock can
	// be taken before the vehicle lock.
	var vehicle models.Vehicle
	if err := tx.GetContext(ctx, &vehicle,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_id = $1`, vehicleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vehicle %s not found", vehicleID)
		}
		return nil, err
	}
	explicit := binID != ""
	if !explicit {
		if vehicle.TargetBinID == nil {
			return &CompleteOutcome{Reason: ReasonNoTargetBin}, nil
		}
		binID = *vehicle.TargetBinID
	}

	var bin models.Bin
	if err := tx.GetContext(ctx, &bin,
		`SELECT `+binColumns+` FROM bins WHERE bin_id = $1 FOR UPDATE`, binID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &CompleteOutcome{Reason: ReasonBinNotFound}, nil
		}
		return nil, err
	}

	if err := tx.GetContext(ctx, &vehicle,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_id = $1 FOR UPDATE`, vehicleID); err != nil {
		return nil, err
	}
	// A concurrent timeout may have freed the vehicle between the
	// unlocked read and the lock; a derived target is then stale.
	if !explicit && (vehicle.TargetBinID == nil || *vehicle.TargetBinID != binID) {
		return &CompleteOutcome{Reason: ReasonNoTargetBin}, nil
	}

	var route *models.Route
	var active models.Route
	err = tx.GetContext(ctx, &active,
		`SELECT `+routeColumns+` FROM routes
		 WHERE vehicle_id = $1 AND status IN ('pending', 'in-progress')
		 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, vehicleID)
	switch {
	case err == nil:
		route = &active
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	now := time.Now().UnixMilli()
	fillBefore := bin.FillLevel

	var updatedBin models.Bin
	if err := tx.GetContext(ctx, &updatedBin,
		`UPDATE bins
		 SET status = 'EMPTY', fill_level = $2, last_cleaning_time = $3,
		     total_cleanings = total_cleanings + 1, updated_at = $3
		 WHERE bin_id = $1
		 RETURNING `+binColumns, binID, EmptyFillLevel, now); err != nil {
		return nil, err
	}

	travelled := 0.0
	if route != nil {
		travelled = route.DistanceKm
	}
	var updatedVehicle models.Vehicle
	if err := tx.GetContext(ctx, &updatedVehicle,
		`UPDATE vehicles
		 SET status = 'idle', is_moving = FALSE, target_bin_id = NULL,
		     total_cleanings = total_cleanings + 1, total_distance_km = total_distance_km + $2,
		     last_cleaning_time = $3, updated_at = $3
		 WHERE vehicle_id = $1
		 RETURNING `+vehicleColumns, vehicleID, travelled, now); err != nil {
		return nil, err
	}

	if route != nil {
		var closed models.Route
		if err := tx.GetContext(ctx, &closed,
			`UPDATE routes
			 SET status = 'completed', started_at = COALESCE(started_at, $2),
			     completed_at = $2, updated_at = $2
			 WHERE id = $1
			 RETURNING `+routeColumns, route.ID, now); err != nil {
			return nil, err
		}
		route = &closed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &CompleteOutcome{
		Reason:          ReasonCompleted,
		Bin:             &updatedBin,
		Vehicle:         &updatedVehicle,
		Route:           route,
		FillLevelBefore: fillBefore,
	}, nil
}

func (s *PGStore) CancelAssignment(ctx context.Context, routeID string) (*CancelOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Unlocked read first; locks follow the global order, vehicle
	// before route.
	var route models.Route
	if err := tx.GetContext(ctx, &route,
		`SELECT `+routeColumns+` FROM routes WHERE id = $1`, routeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &CancelOutcome{Cancelled: false}, nil
		}
		return nil, err
	}

	var vehicle models.Vehicle
	if err := tx.GetContext(ctx, &vehicle,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_id = $1 FOR UPDATE`, route.VehicleID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	if err := tx.GetContext(ctx, &route,
		`SELECT `+routeColumns+` FROM routes WHERE id = $1 FOR UPDATE`, routeID); err != nil {
		return nil, err
	}
	if !route.Active() {
		return &CancelOutcome{Cancelled: false, Route: &route}, nil
	}

	now := time.Now().UnixMilli()
	var cancelled models.Route
	if err := tx.GetContext(ctx, &cancelled,
		`UPDATE routes
		 SET status = 'cancelled', completed_at = $2, updated_at = $2
		 WHERE id = $1
		 RETURNING `+routeColumns, routeID, now); err != nil {
		return nil, err
	}

	reset := false
	if vehicle.VehicleID != "" && vehicle.TargetBinID != nil && *vehicle.TargetBinID == route.BinID {
		if err := tx.GetContext(ctx, &vehicle,
			`UPDATE vehicles
			 SET status = 'idle', is_moving = FALSE, target_bin_id = NULL, updated_at = $2
			 WHERE vehicle_id = $1
			 RETURNING `+vehicleColumns, vehicle.VehicleID, now); err != nil {
			return nil, err
		}
		reset = true
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	out := &CancelOutcome{Cancelled: true, VehicleReset: reset, Route: &cancelled}
	if vehicle.VehicleID != "" {
		out.Vehicle = &vehicle
	}
	return out, nil
}

func (s *PGStore) ActiveRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.SelectContext(ctx, &routes,
		`SELECT `+routeColumns+` FROM routes
		 WHERE status IN ('pending', 'in-progress') ORDER BY created_at`)
	return routes, err
}

func (s *PGStore) UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.db.GetContext(ctx, &vehicle,
		`UPDATE vehicles SET latitude = $2, longitude = $3, updated_at = $4
		 WHERE vehicle_id = $1
		 RETURNING `+vehicleColumns, vehicleID, lat, lon, time.Now().UnixMilli())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vehicle %s not found", vehicleID)
		}
		return nil, err
	}
	return &vehicle, nil
}

func (s *PGStore) GetBin(ctx context.Context, binID string) (*models.Bin, error) {
	var bin models.Bin
	err := s.db.GetContext(ctx, &bin,
		`SELECT `+binColumns+` FROM bins WHERE bin_id = $1`, binID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bin %s not found", binID)
		}
		return nil, err
	}
	return &bin, nil
}

func (s *PGStore) InsertReading(ctx context.Context, r *models.SensorReading) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sensor_readings (id, bin_id, location, distance, is_alert, timestamp)
		 VALUES (:id, :bin_id, :location, :distance, :is_alert, :timestamp)`, r)
	return err
}

func (s *PGStore) InsertAlert(ctx context.Context, a *models.SensorAlert) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO sensor_alerts (id, bin_id, location, distance, message, status, created_at)
		 VALUES (:id, :bin_id, :location, :distance, :message, :status, :created_at)`, a)
	return err
}

func (s *PGStore) InsertCleaning(ctx context.Context, c *models.Cleaning) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO cleanings (id, bin_id, vehicle_id, driver_name, bin_location,
		    fill_level_before, fill_level_after, distance_km, duration_min, notes, cleaned_at)
		 VALUES (:id, :bin_id, :vehicle_id, :driver_name, :bin_location,
		    :fill_level_before, :fill_level_after, :distance_km, :duration_min, :notes, :cleaned_at)`, c)
	return err
}

func (s *PGStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO activities (id, type, title, description, bin_id, vehicle_id, location, created_at)
		 VALUES (:id, :type, :title, :description, :bin_id, :vehicle_id, :location, :created_at)`, a)
	return err
}
