package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"

	"tozahudud-backend/internal/dispatch"
	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

const readingColumns = `id, bin_id, location, distance, is_alert, timestamp`

// HandleSensorDistance ingests one ultrasonic distance measurement
// and runs the full sensor protocol.
func HandleSensorDistance(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.SensorPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		result, err := engine.HandleSensorReading(r.Context(), payload)
		if err != nil {
			if errors.Is(err, dispatch.ErrInvalidDistance) {
				utils.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to process sensor reading")
			return
		}
		utils.Success(w, result)
	}
}

// GetSensorDistance serves two callers on one path: bare firmware
// clients that can only issue GET requests ingest by passing a
// distance query parameter, and dashboards without one get the recent
// readings list.
func GetSensorDistance(db *sqlx.DB, engine *dispatch.Engine) http.HandlerFunc {
	list := GetSensorReadings(db)
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("distance")
		if raw == "" {
			list(w, r)
			return
		}

		distance, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "distance must be a number")
			return
		}
		result, err := engine.HandleSensorReading(r.Context(), models.SensorPayload{
			Distance: distance,
			BinID:    r.URL.Query().Get("binId"),
			Location: r.URL.Query().Get("location"),
		})
		if err != nil {
			if errors.Is(err, dispatch.ErrInvalidDistance) {
				utils.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to process sensor reading")
			return
		}
		utils.Success(w, result)
	}
}

// GetSensorReadings lists recent readings, newest first.
func GetSensorReadings(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 50, 500)
		binID := r.URL.Query().Get("binId")

		var readings []models.SensorReading
		var err error
		if binID != "" {
			err = db.Select(&readings,
				`SELECT `+readingColumns+` FROM sensor_readings
				 WHERE bin_id = $1 ORDER BY timestamp DESC LIMIT $2`, binID, limit)
		} else {
			err = db.Select(&readings,
				`SELECT `+readingColumns+` FROM sensor_readings
				 ORDER BY timestamp DESC LIMIT $1`, limit)
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch readings")
			return
		}

		responses := make([]models.SensorReadingResponse, len(readings))
		for i := range readings {
			responses[i] = readings[i].ToSensorReadingResponse()
		}
		utils.Success(w, responses)
	}
}

// GetLatestReading returns the most recent reading for one bin.
func GetLatestReading(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := r.URL.Query().Get("binId")
		if binID == "" {
			binID = dispatch.DefaultBinID
		}

		var reading models.SensorReading
		err := db.Get(&reading,
			`SELECT `+readingColumns+` FROM sensor_readings
			 WHERE bin_id = $1 ORDER BY timestamp DESC LIMIT 1`, binID)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "No readings for bin "+binID)
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch reading")
			return
		}
		utils.Success(w, reading.ToSensorReadingResponse())
	}
}

// GetSensorAlerts lists full-bin alerts, newest first.
func GetSensorAlerts(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 100, 500)
		status := r.URL.Query().Get("status")

		var alerts []models.SensorAlert
		var err error
		if status != "" {
			err = db.Select(&alerts,
				`SELECT id, bin_id, location, distance, message, status, created_at
				 FROM sensor_alerts WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
		} else {
			err = db.Select(&alerts,
				`SELECT id, bin_id, location, distance, message, status, created_at
				 FROM sensor_alerts ORDER BY created_at DESC LIMIT $1`, limit)
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch alerts")
			return
		}
		utils.Success(w, alerts)
	}
}

func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
