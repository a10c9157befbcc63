package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

const binColumns = `id, bin_id, location, district, latitude, longitude, status, fill_level,
	capacity, last_distance, is_online, battery_level, last_cleaning_time,
	total_cleanings, created_at, updated_at`

func GetBins(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bins []models.Bin
		err := db.Select(&bins,
			`SELECT `+binColumns+` FROM bins ORDER BY bin_id ASC`)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bins")
			return
		}

		responses := make([]models.BinResponse, len(bins))
		for i := range bins {
			responses[i] = bins[i].ToBinResponse()
		}
		utils.Success(w, responses)
	}
}

func GetBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "binId")

		var bin models.Bin
		err := db.Get(&bin, `SELECT `+binColumns+` FROM bins WHERE bin_id = $1`, binID)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Bin not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bin")
			return
		}
		utils.Success(w, bin.ToBinResponse())
	}
}

func CreateBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.BinID == "" {
			utils.Error(w, http.StatusBadRequest, "binId is required")
			return
		}

		capacity := 120
		if req.Capacity != nil && *req.Capacity > 0 {
			capacity = *req.Capacity
		}
		now := time.Now().UnixMilli()
		bin := models.Bin{
			ID:           uuid.NewString(),
			BinID:        req.BinID,
			Location:     req.Location,
			District:     req.District,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			Status:       models.BinStatusEmpty,
			FillLevel:    15,
			Capacity:     capacity,
			IsOnline:     true,
			BatteryLevel: 100,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, err := db.NamedExec(
			`INSERT INTO bins (`+binColumns+`)
			 VALUES (:id, :bin_id, :location, :district, :latitude, :longitude, :status,
			         :fill_level, :capacity, :last_distance, :is_online, :battery_level,
			         :last_cleaning_time, :total_cleanings, :created_at, :updated_at)`, &bin)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				utils.Error(w, http.StatusConflict, "Bin already exists")
				return
			}
			utils.Error(w, http.StatusInternalServerError, "Failed to create bin")
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    bin.ToBinResponse(),
		})
	}
}

func UpdateBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "binId")

		var req models.UpdateBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var bin models.Bin
		err := db.Get(&bin, `SELECT `+binColumns+` FROM bins WHERE bin_id = $1`, binID)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Bin not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch bin")
			return
		}

		if req.Location != nil {
			bin.Location = *req.Location
		}
		if req.District != nil {
			bin.District = *req.District
		}
		if req.Latitude != nil {
			bin.Latitude = *req.Latitude
		}
		if req.Longitude != nil {
			bin.Longitude = *req.Longitude
		}
		if req.Capacity != nil && *req.Capacity > 0 {
			bin.Capacity = *req.Capacity
		}
		bin.UpdatedAt = time.Now().UnixMilli()

		_, err = db.NamedExec(
			`UPDATE bins SET location = :location, district = :district, latitude = :latitude,
			     longitude = :longitude, capacity = :capacity, updated_at = :updated_at
			 WHERE bin_id = :bin_id`, &bin)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to update bin")
			return
		}
		utils.Success(w, bin.ToBinResponse())
	}
}

func DeleteBin(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID := chi.URLParam(r, "binId")

		// A bin with a vehicle en route cannot be removed.
		var assigned int
		err := db.Get(&assigned,
			`SELECT COUNT(*) FROM vehicles WHERE target_bin_id = $1`, binID)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to check assignments")
			return
		}
		if assigned > 0 {
			utils.Error(w, http.StatusConflict, "Bin has an active assignment")
			return
		}

		result, err := db.Exec(`DELETE FROM bins WHERE bin_id = $1`, binID)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to delete bin")
			return
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			utils.Error(w, http.StatusNotFound, "Bin not found")
			return
		}
		utils.Success(w, map[string]string{"binId": binID})
	}
}
