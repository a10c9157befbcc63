package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"tozahudud-backend/internal/models"
	"tozahudud-backend/pkg/utils"
)

const routeColumns = `id, vehicle_id, bin_id, start_latitude, start_longitude, route_path,
	distance_km, duration_min, status, fallback_route, started_at, completed_at,
	created_at, updated_at`

func GetRoutes(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r, 50, 500)
		status := r.URL.Query().Get("status")

		var routes []models.Route
		var err error
		if status != "" {
			err = db.Select(&routes,
				`SELECT `+routeColumns+` FROM routes
				 WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
		} else {
			err = db.Select(&routes,
				`SELECT `+routeColumns+` FROM routes
				 ORDER BY created_at DESC LIMIT $1`, limit)
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch routes")
			return
		}

		responses := make([]models.RouteResponse, len(routes))
		for i := range routes {
			responses[i] = routes[i].ToRouteResponse()
		}
		utils.Success(w, responses)
	}
}

func GetRoute(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var route models.Route
		err := db.Get(&route, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Route not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch route")
			return
		}
		utils.Success(w, route.ToRouteResponse())
	}
}
