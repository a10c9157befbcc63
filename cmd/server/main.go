package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tozahudud-backend/internal/database"
	"tozahudud-backend/internal/dispatch"
	"tozahudud-backend/internal/handlers"
	"tozahudud-backend/internal/metrics"
	"tozahudud-backend/internal/routing"
	"tozahudud-backend/internal/websocket"
)

// positionSink forwards GPS fixes from websocket clients into the
// dispatch engine. It exists because the hub is built before the
// engine: the engine broadcasts through the hub.
type positionSink struct {
	engine *dispatch.Engine
}

func (s *positionSink) ReportPosition(vehicleID string, lat, lon float64) {
	if s.engine == nil {
		return
	}
	if _, err := s.engine.UpdateVehiclePosition(context.Background(), vehicleID, lat, lon); err != nil {
		log.Printf("position update for %s: %v", vehicleID, err)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}
	if err := database.Seed(db); err != nil {
		log.Fatal(err)
	}

	sink, err := metrics.NewSink(nil)
	if err != nil {
		log.Fatal(err)
	}

	planner := routing.NewClient(os.Getenv("OSRM_BASE_URL"))

	positions := &positionSink{}
	hub := websocket.NewHub(positions)
	go hub.Run()

	engine, err := dispatch.New(dispatch.NewPGStore(db), planner, hub, sink, assignmentTimeout())
	if err != nil {
		log.Fatal(err)
	}
	positions.engine = engine

	// Re-arm timers for assignments that survived a restart.
	if err := engine.ReclaimStale(context.Background()); err != nil {
		log.Printf("stale assignment recovery: %v", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", websocket.HandleWebSocket(hub))

	r.Route("/api", func(r chi.Router) {
		// Sensor ingestion
		r.Post("/sensors/distance", handlers.HandleSensorDistance(engine))
		r.Get("/sensors/distance", handlers.GetSensorDistance(db, engine))
		r.Get("/sensors/readings", handlers.GetSensorReadings(db))
		r.Get("/sensors/latest", handlers.GetLatestReading(db))
		r.Get("/sensors/alerts", handlers.GetSensorAlerts(db))

		// Bins
		r.Get("/bins", handlers.GetBins(db))
		r.Post("/bins", handlers.CreateBin(db))
		r.Get("/bins/{binId}", handlers.GetBin(db))
		r.Patch("/bins/{binId}", handlers.UpdateBin(db))
		r.Delete("/bins/{binId}", handlers.DeleteBin(db))

		// Vehicles
		r.Get("/vehicles", handlers.GetVehicles(db))
		r.Post("/vehicles", handlers.CreateVehicle(db))
		r.Get("/vehicles/{vehicleId}", handlers.GetVehicle(db))
		r.Post("/vehicles/{vehicleId}/position", handlers.UpdateVehiclePosition(engine))
		r.Post("/vehicles/{vehicleId}/complete-cleaning", handlers.CompleteCleaning(engine))
		r.Patch("/vehicles/{vehicleId}/status", handlers.UpdateVehicleStatus(db))

		// Routes
		r.Get("/routes", handlers.GetRoutes(db))
		r.Get("/routes/{id}", handlers.GetRoute(db))

		// Dispatch
		r.Post("/dispatch/assign", handlers.TriggerDispatch(engine))

		// History and reporting
		r.Get("/cleanings", handlers.GetCleanings(db))
		r.Get("/activities", handlers.GetActivities(db))
		r.Get("/stats", handlers.GetStats(db))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	engine.Close()
	hub.Stop()
}

func assignmentTimeout() time.Duration {
	raw := os.Getenv("ASSIGNMENT_TIMEOUT")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid ASSIGNMENT_TIMEOUT %q, using default", raw)
		return 0
	}
	return d
}
