package dispatch

import (
	"math"
	"time"

	"tozahudud-backend/internal/models"
)

// Tuning constants for the sensor fill model and the assignment
// lifecycle.
const (
	// FullDistanceThresholdCm is the sensor distance at or below which
	// a bin counts as full.
	FullDistanceThresholdCm = 20.0

	// SensorRangeCm is the assumed distance from the sensor to the
	// bottom of an empty bin, used for the linear fill estimate.
	SensorRangeCm = 120.0

	FullFillLevel  = 95
	EmptyFillLevel = 15

	// ArrivalRadiusKm is the vehicle-to-bin distance that counts as
	// "arrived".
	ArrivalRadiusKm = 0.03

	// DefaultAssignmentTimeout is how long a vehicle gets to reach and
	// clean its bin before the supervisor reclaims it.
	DefaultAssignmentTimeout = 10 * time.Minute

	DefaultBinID     = "ESP32-IBN-SINO"
	DefaultLocation  = "Ibn Sino ko'chasi 17A, Samarqand"
	DefaultLatitude  = 39.6742637
	DefaultLongitude = 66.9737814
	DefaultCapacity  = 120
)

// NextFillState applies one sensor reading to a bin's fill state.
//
// A reading at or below the full threshold forces FULL. Once a bin is
// FULL, later non-full readings must not flip it back: only the
// completion protocol empties a bin. This is a business rule, not an
// ordering accident.
func NextFillState(currentStatus string, currentFill int, distanceCm float64) (status string, fillLevel int) {
	if distanceCm <= FullDistanceThresholdCm {
		return models.BinStatusFull, FullFillLevel
	}
	if currentStatus == models.BinStatusFull {
		return models.BinStatusFull, currentFill
	}
	return models.BinStatusEmpty, estimateFillLevel(distanceCm)
}

// estimateFillLevel maps a distance over the sensor range to a fill
// percentage, clamped to the [empty, full] baselines.
func estimateFillLevel(distanceCm float64) int {
	clamped := math.Max(0, math.Min(distanceCm, SensorRangeCm))
	estimated := int(math.Round((1 - clamped/SensorRangeCm) * 100))
	if estimated < EmptyFillLevel {
		return EmptyFillLevel
	}
	if estimated > FullFillLevel {
		return FullFillLevel
	}
	return estimated
}
