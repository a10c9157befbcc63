package handlers

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

// GetActivities lists the recent activity feed, newest first.
func GetActivities(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 20, 200)

		var activities []models.Activity
		err := db.Select(&activities,
			`SELECT id, type, title, description, bin_id, vehicle_id, location, created_at
			 FROM activities ORDER BY created_at DESC LIMIT $1`, limit)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch activities")
			return
		}

		responses := make([]models.ActivityResponse, len(activities))
		for i := range activities {
			responses[i] = activities[i].ToActivityResponse()
		}
		utils.Success(w, responses)
	}
}
