package handlers

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

const cleaningColumns = `id, bin_id, vehicle_id, driver_name, bin_location, fill_level_before,
	fill_level_after, distance_km, duration_min, notes, cleaned_at`

// GetCleanings lists the cleaning history, newest first, optionally
// filtered by bin or vehicle.
func GetCleanings(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 50, 500)
		binID := r.URL.Query().Get("binId")
		vehicleID := r.URL.Query().Get("vehicleId")

		query := `SELECT ` + cleaningColumns + ` FROM cleanings`
		var clauses []string
		var args []interface{}
		if binID != "" {
			args = append(args, binID)
			clauses = append(clauses, "bin_id = ?")
		}
		if vehicleID != "" {
			args = append(args, vehicleID)
			clauses = append(clauses, "vehicle_id = ?")
		}
		for i, clause := range clauses {
			if i == 0 {
				query += " WHERE " + clause
			} else {
				query += " AND " + clause
			}
		}
		args = append(args, limit)
		query += " ORDER BY cleaned_at DESC LIMIT ?"
		query = db.Rebind(query)

		var cleanings []models.Cleaning
		if err := db.Select(&cleanings, query, args...); err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch cleanings")
			return
		}

		responses := make([]models.CleaningResponse, len(cleanings))
		for i := range cleanings {
			responses[i] = cleanings[i].ToCleaningResponse()
		}
		utils.Success(w, responses)
	}
}
