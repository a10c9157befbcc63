package handlers

import (
	"encoding/json"
	"net/http"

	"tozahudud-backend/internal/dispatch"
	"tozahudud-backend/pkg/utils"
)

// TriggerDispatch lets an operator force an assignment attempt for a
// bin, e.g. after a missed sensor transmission.
func TriggerDispatch(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BinID string `json:"binId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BinID == "" {
			utils.Error(w, http.StatusBadRequest, "binId is required")
			return
		}

		result, err := engine.AssignNearestVehicle(r.Context(), req.BinID, dispatch.AssignOptions{
			Trigger: "manual",
		})
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to dispatch")
			return
		}
		switch result.Reason {
		case dispatch.ReasonBinNotFound:
			utils.JSON(w, http.StatusNotFound, result)
		case dispatch.ReasonBinNotFull, dispatch.ReasonNoAvailableVehicles:
			utils.JSON(w, http.StatusConflict, result)
		default:
			utils.Success(w, result)
		}
	}
}
