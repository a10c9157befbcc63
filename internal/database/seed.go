package database

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Seed inserts the demo fleet and the pilot bin. Existing rows are
// left alone, so seeding is safe on every startup.
func Seed(db *sqlx.DB) error {
	now := time.Now().UnixMilli()

	vehicles := []struct {
		vehicleID string
		driver    string
		lat, lon  float64
	}{
		{"VEH-001", "Akmal Karimov", 39.6600, 66.9600},
		{"VEH-002", "Bobur Rahimov", 39.6850, 66.9850},
	}
	for _, v := range vehicles {
		_, err := db.Exec(
			`INSERT INTO vehicles (id, vehicle_id, driver_name, latitude, longitude, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, 'idle', $6, $6)
			 ON CONFLICT (vehicle_id) DO NOTHING`,
			uuid.NewString(), v.vehicleID, v.driver, v.lat, v.lon, now)
		if err != nil {
			return err
		}
	}

	_, err := db.Exec(
		`INSERT INTO bins (id, bin_id, location, district, latitude, longitude, status, fill_level, capacity, created_at, updated_at)
		 VALUES ($1, $2, $3, 'Samarqand', $4, $5, 'EMPTY', 15, 120, $6, $6)
		 ON CONFLICT (bin_id) DO NOTHING`,
		uuid.NewString(), "ESP32-IBN-SINO", "Ibn Sino ko'chasi 17A, Samarqand",
		39.6742637, 66.9737814, now)
	if err != nil {
		return err
	}

	log.Println("database seeded")
	return nil
}
