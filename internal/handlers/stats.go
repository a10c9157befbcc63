package handlers

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"tozahudud-backend/pkg/utils"
)

// Stats is the dashboard summary block.
type Stats struct {
	TotalBins       int     `json:"totalBins"`
	FullBins        int     `json:"fullBins"`
	TotalVehicles   int     `json:"totalVehicles"`
	ActiveVehicles  int     `json:"activeVehicles"`
	ActiveRoutes    int     `json:"activeRoutes"`
	CleaningsToday  int     `json:"cleaningsToday"`
	TotalCleanings  int     `json:"totalCleanings"`
	TotalDistanceKm float64 `json:"totalDistanceKm"`
}

func GetStats(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stats Stats
		queries := []struct {
			dest  interface{}
			query string
			args  []interface{}
		}{
			{&stats.TotalBins, `SELECT COUNT(*) FROM bins`, nil},
			{&stats.FullBins, `SELECT COUNT(*) FROM bins WHERE status = 'FULL'`, nil},
			{&stats.TotalVehicles, `SELECT COUNT(*) FROM vehicles`, nil},
			{&stats.ActiveVehicles, `SELECT COUNT(*) FROM vehicles WHERE is_moving = TRUE`, nil},
			{&stats.ActiveRoutes, `SELECT COUNT(*) FROM routes WHERE status IN ('pending', 'in-progress')`, nil},
			{&stats.CleaningsToday, `SELECT COUNT(*) FROM cleanings WHERE cleaned_at >= $1`,
				[]interface{}{startOfDayMillis()}},
			{&stats.TotalCleanings, `SELECT COUNT(*) FROM cleanings`, nil},
			{&stats.TotalDistanceKm, `SELECT COALESCE(SUM(total_distance_km), 0) FROM vehicles`, nil},
		}
		for _, q := range queries {
			if err := db.Get(q.dest, q.query, q.args...); err != nil {
				utils.Error(w, http.StatusInternalServerError, "Failed to fetch stats")
				return
			}
		}
		utils.Success(w, stats)
	}
}

func startOfDayMillis() int64 {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start.UnixMilli()
}
