package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tozahudud-backend/internal/dispatch"
	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

const vehicleColumns = `id, vehicle_id, driver_name, latitude, longitude, status, is_moving,
	target_bin_id, total_cleanings, total_distance_km, last_cleaning_time,
	created_at, updated_at`

// GetVehicles lists the fleet with each vehicle's active route
// attached.
func GetVehicles(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var vehicles []models.Vehicle
		err := db.Select(&vehicles,
			`SELECT `+vehicleColumns+` FROM vehicles ORDER BY vehicle_id ASC`)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch vehicles")
			return
		}

		responses := make([]models.VehicleResponse, len(vehicles))
		for i := range vehicles {
			responses[i] = decorateVehicle(db, &vehicles[i])
		}
		utils.Success(w, responses)
	}
}

func GetVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := chi.URLParam(r, "vehicleId")

		var vehicle models.Vehicle
		err := db.Get(&vehicle,
			`SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_id = $1`, vehicleID)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Vehicle not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch vehicle")
			return
		}
		utils.Success(w, decorateVehicle(db, &vehicle))
	}
}

func CreateVehicle(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateVehicleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.VehicleID == "" || req.DriverName == "" {
			utils.Error(w, http.StatusBadRequest, "vehicleId and driverName are required")
			return
		}

		now := time.Now().UnixMilli()
		vehicle := models.Vehicle{
			ID:         uuid.NewString(),
			VehicleID:  req.VehicleID,
			DriverName: req.DriverName,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
			Status:     models.VehicleStatusIdle,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err := db.NamedExec(
			`INSERT INTO vehicles (`+vehicleColumns+`)
			 VALUES (:id, :vehicle_id, :driver_name, :latitude, :longitude, :status, :is_moving,
			         :target_bin_id, :total_cleanings, :total_distance_km, :last_cleaning_time,
			         :created_at, :updated_at)`, &vehicle)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.Error(w, http.StatusConflict, "Vehicle already exists")
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to create vehicle")
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    vehicle.ToVehicleResponse(),
		})
	}
}

// UpdateVehiclePosition stores a GPS fix; reaching the target bin
// completes the cleaning automatically.
func UpdateVehiclePosition(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := chi.URLParam(r, "vehicleId")

		var req models.PositionUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		vehicle, err := engine.UpdateVehiclePosition(r.Context(), vehicleID, req.Latitude, req.Longitude)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				utils.Error(w, http.StatusNotFound, "Vehicle not found")
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to update position")
			return
		}
		utils.Success(w, vehicle.ToVehicleResponse())
	}
}

// CompleteCleaning is the driver-side confirmation that the target
// bin has been emptied.
func CompleteCleaning(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := chi.URLParam(r, "vehicleId")

		var req models.CompleteCleaningRequest
		if r.Body != nil {
			// Body is optional: no payload means "my current target".
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		result, err := engine.CompleteCleaning(r.Context(), vehicleID, req.BinID, req.Notes)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				utils.Error(w, http.StatusNotFound, err.Error())
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to complete cleaning")
			return
		}
		if !result.Success {
			utils.JSON(w, http.StatusConflict, result)
			return
		}
		utils.Success(w, result)
	}
}

// UpdateVehicleStatus lets an operator park or release a vehicle. A
// manual stop does not cancel an active assignment; the timeout
// supervisor reclaims the bin if the vehicle never resumes.
func UpdateVehicleStatus(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicleID := chi.URLParam(r, "vehicleId")

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Status != models.VehicleStatusStopped && req.Status != models.VehicleStatusIdle {
			utils.Error(w, http.StatusBadRequest, "status must be 'stopped' or 'idle'")
			return
		}

		// Releasing a vehicle that still has a target puts it back on
		// the road, not on patrol.
		var vehicle models.Vehicle
		err := db.Get(&vehicle,
			`UPDATE vehicles
			 SET status = CASE
			         WHEN $2 = 'idle' AND target_bin_id IS NOT NULL THEN 'moving'
			         ELSE $2
			     END,
			     is_moving = ($2 = 'idle' AND target_bin_id IS NOT NULL),
			     updated_at = $3
			 WHERE vehicle_id = $1
			 RETURNING `+vehicleColumns, vehicleID, req.Status, time.Now().UnixMilli())
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Vehicle not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to update status")
			return
		}
		utils.Success(w, decorateVehicle(db, &vehicle))
	}
}

// decorateVehicle attaches the active route, if any, to the response.
func decorateVehicle(db *sqlx.DB, v *models.Vehicle) models.VehicleResponse {
	resp := v.ToVehicleResponse()
	if v.TargetBinID == nil {
		return resp
	}

	var route models.Route
	err := db.Get(&route,
		`SELECT id, route_path FROM routes
		 WHERE vehicle_id = $1 AND status IN ('pending', 'in-progress')
		 ORDER BY created_at DESC LIMIT 1`, v.VehicleID)
	if err == nil {
		resp.RouteID = &route.ID
		resp.CurrentRoute = route.RoutePath
	}
	return resp
}
