package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	log.Println("database connected")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Bins: one row per physical waste bin. Status and fill level
		// are owned by the dispatch engine.
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL UNIQUE,
			location TEXT NOT NULL DEFAULT '',
			district TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'EMPTY' CHECK(status IN ('EMPTY', 'FULL')),
			fill_level INT NOT NULL DEFAULT 15,
			capacity INT NOT NULL DEFAULT 120,
			last_distance DOUBLE PRECISION,
			is_online BOOLEAN NOT NULL DEFAULT TRUE,
			battery_level INT NOT NULL DEFAULT 100,
			last_cleaning_time BIGINT,
			total_cleanings INT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		)`,

		// Vehicles: the collection fleet.
		`CREATE TABLE IF NOT EXISTS vehicles (
			id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL UNIQUE,
			driver_name TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'idle' CHECK(status IN ('idle', 'moving', 'cleaning', 'stopped')),
			is_moving BOOLEAN NOT NULL DEFAULT FALSE,
			target_bin_id TEXT,
			total_cleanings INT NOT NULL DEFAULT 0,
			total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_cleaning_time BIGINT,
			created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		)`,

		// Routes: one row per assignment, provisional geometry first,
		// planned geometry once the road service answers.
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL,
			bin_id TEXT NOT NULL,
			start_latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			route_path JSONB NOT NULL DEFAULT '[]',
			distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_min INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in-progress', 'completed', 'cancelled')),
			fallback_route BOOLEAN NOT NULL DEFAULT FALSE,
			started_at BIGINT,
			completed_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_routes_vehicle_status ON routes(vehicle_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_bin_status ON routes(bin_id, status)`,

		// Sensor readings: append-only raw measurements.
		`CREATE TABLE IF NOT EXISTS sensor_readings (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			distance DOUBLE PRECISION NOT NULL,
			is_alert BOOLEAN NOT NULL DEFAULT FALSE,
			timestamp BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_readings_bin_time ON sensor_readings(bin_id, timestamp DESC)`,

		// Sensor alerts: one row per EMPTY-to-FULL transition.
		`CREATE TABLE IF NOT EXISTS sensor_alerts (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			distance DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'resolved')),
			created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		)`,

		// Cleanings: completed collection history.
		`CREATE TABLE IF NOT EXISTS cleanings (
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			driver_name TEXT NOT NULL DEFAULT '',
			bin_location TEXT NOT NULL DEFAULT '',
			fill_level_before INT NOT NULL DEFAULT 0,
			fill_level_after INT NOT NULL DEFAULT 0,
			distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_min INT NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			cleaned_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_cleanings_bin ON cleanings(bin_id, cleaned_at DESC)`,

		// Activities: best-effort audit feed.
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			bin_id TEXT,
			vehicle_id TEXT,
			location TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM NOW()) * 1000)::BIGINT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_time ON activities(created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	log.Printf("database migrated (%d statements)", len(migrations))
	return nil
}
