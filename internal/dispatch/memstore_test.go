package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tozahudud-backend/internal/geo"
	"tozahudud-backend/internal/models"
	"tozahudud-backend/internal/routing"
)

// memStore is an in-memory Store with the same transactional
// semantics as the Postgres implementation: one mutex stands in for
// row locks, so every mutating call is atomic.
type memStore struct {
	mu         sync.Mutex
	bins       map[string]*models.Bin
	vehicles   map[string]*models.Vehicle
	routes     map[string]*models.Route
	readings   []models.SensorReading
	alerts     []models.SensorAlert
	cleanings  []models.Cleaning
	activities []models.Activity

	failStartRoute bool
	failCleanings  bool
	failActivities bool
}

func newMemStore() *memStore {
	return &memStore{
		bins:     make(map[string]*models.Bin),
		vehicles: make(map[string]*models.Vehicle),
		routes:   make(map[string]*models.Route),
	}
}

func (m *memStore) addBin(binID string, lat, lon float64, status string, fill int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixMilli()
	m.bins[binID] = &models.Bin{
		ID: uuid.NewString(), BinID: binID, Location: "Test location",
		Latitude: lat, Longitude: lon, Status: status, FillLevel: fill,
		Capacity: DefaultCapacity, IsOnline: true, BatteryLevel: 100,
		CreatedAt: now, UpdatedAt: now,
	}
}

func (m *memStore) addVehicle(vehicleID, driver string, lat, lon float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixMilli()
	m.vehicles[vehicleID] = &models.Vehicle{
		ID: uuid.NewString(), VehicleID: vehicleID, DriverName: driver,
		Latitude: lat, Longitude: lon, Status: models.VehicleStatusIdle,
		CreatedAt: now, UpdatedAt: now,
	}
}

func (m *memStore) bin(binID string) models.Bin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bins[binID]
}

func (m *memStore) vehicle(vehicleID string) models.Vehicle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.vehicles[vehicleID]
}

func (m *memStore) routeList() []models.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func (m *memStore) EnsureBin(_ context.Context, binID, location string) (*models.Bin, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bins[binID]; ok {
		cp := *b
		return &cp, false, nil
	}
	now := time.Now().UnixMilli()
	b := &models.Bin{
		ID: uuid.NewString(), BinID: binID, Location: location, District: "Samarqand",
		Latitude: DefaultLatitude, Longitude: DefaultLongitude,
		Status: models.BinStatusEmpty, FillLevel: EmptyFillLevel,
		Capacity: DefaultCapacity, IsOnline: true, BatteryLevel: 100,
		CreatedAt: now, UpdatedAt: now,
	}
	m.bins[binID] = b
	cp := *b
	return &cp, true, nil
}

func (m *memStore) ApplyReading(_ context.Context, binID string, distanceCm float64) (*ReadingOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bins[binID]
	if !ok {
		return nil, fmt.Errorf("bin %s not found", binID)
	}
	wasFull := b.Status == models.BinStatusFull
	b.Status, b.FillLevel = NextFillState(b.Status, b.FillLevel, distanceCm)
	d := distanceCm
	b.LastDistance = &d
	b.IsOnline = true
	b.UpdatedAt = time.Now().UnixMilli()
	cp := *b
	return &ReadingOutcome{Bin: &cp, WasFull: wasFull, IsFull: distanceCm <= FullDistanceThresholdCm}, nil
}

func (m *memStore) AssignNearestVehicle(_ context.Context, binID string, exclude []string) (*AssignOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bins[binID]
	if !ok {
		return &AssignOutcome{Reason: ReasonBinNotFound}, nil
	}
	if b.Status != models.BinStatusFull {
		cp := *b
		return &AssignOutcome{Reason: ReasonBinNotFull, Bin: &cp}, nil
	}
	for _, v := range m.vehicles {
		if v.TargetBinID != nil && *v.TargetBinID == binID {
			binCp, vCp := *b, *v
			return &AssignOutcome{Reason: ReasonAlreadyAssigned, Bin: &binCp, Vehicle: &vCp}, nil
		}
	}

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var candidates []*models.Vehicle
	for _, v := range m.vehicles {
		if v.Status == models.VehicleStatusIdle && !v.IsMoving && v.TargetBinID == nil && !excluded[v.VehicleID] {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		cp := *b
		return &AssignOutcome{Reason: ReasonNoAvailableVehicles, Bin: &cp}, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].VehicleID < candidates[j].VehicleID })

	binPoint := geo.Point{Latitude: b.Latitude, Longitude: b.Longitude}
	nearest := candidates[0]
	best := geo.DistanceKm(geo.Point{Latitude: nearest.Latitude, Longitude: nearest.Longitude}, binPoint)
	for _, v := range candidates[1:] {
		if d := geo.DistanceKm(geo.Point{Latitude: v.Latitude, Longitude: v.Longitude}, binPoint); d < best {
			nearest, best = v, d
		}
	}

	now := time.Now().UnixMilli()
	nearest.Status = models.VehicleStatusMoving
	nearest.IsMoving = true
	target := binID
	nearest.TargetBinID = &target
	nearest.UpdatedAt = now

	r := &models.Route{
		ID: uuid.NewString(), VehicleID: nearest.VehicleID, BinID: binID,
		StartLatitude: nearest.Latitude, StartLongitude: nearest.Longitude,
		RoutePath: models.Path{
			{nearest.Latitude, nearest.Longitude},
			{b.Latitude, b.Longitude},
		},
		DistanceKm: best, DurationMin: geo.EstimateDurationMin(best),
		Status: models.RouteStatusPending, FallbackRoute: true,
		CreatedAt: now, UpdatedAt: now,
	}
	m.routes[r.ID] = r

	binCp, vCp, rCp := *b, *nearest, *r
	return &AssignOutcome{Reason: ReasonAssigned, Bin: &binCp, Vehicle: &vCp, Route: &rCp}, nil
}

func (m *memStore) StartRoute(_ context.Context, routeID string, path models.Path, distanceKm float64, durationMin int, fallback bool) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStartRoute {
		return nil, fmt.Errorf("routes table unavailable")
	}
	r, ok := m.routes[routeID]
	if !ok || r.Status != models.RouteStatusPending {
		return nil, fmt.Errorf("route %s is not pending", routeID)
	}
	now := time.Now().UnixMilli()
	r.RoutePath = path
	r.DistanceKm = distanceKm
	r.DurationMin = durationMin
	r.FallbackRoute = fallback
	r.Status = models.RouteStatusInProgress
	r.StartedAt = &now
	r.UpdatedAt = now
	cp := *r
	return &cp, nil
}

func (m *memStore) CompleteCleaning(_ context.Context, vehicleID, binID string) (*CompleteOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("vehicle %s not found", vehicleID)
	}
	explicit := binID != ""
	if !explicit {
		if v.TargetBinID == nil {
			return &CompleteOutcome{Reason: ReasonNoTargetBin}, nil
		}
		binID = *v.TargetBinID
	}
	b, ok := m.bins[binID]
	if !ok {
		return &CompleteOutcome{Reason: ReasonBinNotFound}, nil
	}

	var route *models.Route
	for _, r := range m.routes {
		if r.VehicleID == vehicleID && r.Active() {
			if route == nil || r.CreatedAt > route.CreatedAt {
				route = r
			}
		}
	}

	now := time.Now().UnixMilli()
	fillBefore := b.FillLevel
	b.Status = models.BinStatusEmpty
	b.FillLevel = EmptyFillLevel
	b.LastCleaningTime = &now
	b.TotalCleanings++
	b.UpdatedAt = now

	v.Status = models.VehicleStatusIdle
	v.IsMoving = false
	v.TargetBinID = nil
	v.TotalCleanings++
	v.LastCleaningTime = &now
	v.UpdatedAt = now

	if route != nil {
		v.TotalDistanceKm += route.DistanceKm
		route.Status = models.RouteStatusCompleted
		if route.StartedAt == nil {
			route.StartedAt = &now
		}
		route.CompletedAt = &now
		route.UpdatedAt = now
	}

	binCp, vCp := *b, *v
	out := &CompleteOutcome{Reason: ReasonCompleted, Bin: &binCp, Vehicle: &vCp, FillLevelBefore: fillBefore}
	if route != nil {
		rCp := *route
		out.Route = &rCp
	}
	return out, nil
}

func (m *memStore) CancelAssignment(_ context.Context, routeID string) (*CancelOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[routeID]
	if !ok || !r.Active() {
		return &CancelOutcome{Cancelled: false}, nil
	}
	now := time.Now().UnixMilli()
	r.Status = models.RouteStatusCancelled
	r.CompletedAt = &now
	r.UpdatedAt = now

	out := &CancelOutcome{Cancelled: true}
	rCp := *r
	out.Route = &rCp
	if v, ok := m.vehicles[r.VehicleID]; ok {
		if v.TargetBinID != nil && *v.TargetBinID == r.BinID {
			v.Status = models.VehicleStatusIdle
			v.IsMoving = false
			v.TargetBinID = nil
			v.UpdatedAt = now
			out.VehicleReset = true
		}
		vCp := *v
		out.Vehicle = &vCp
	}
	return out, nil
}

func (m *memStore) ActiveRoutes(_ context.Context) ([]models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Route
	for _, r := range m.routes {
		if r.Active() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *memStore) UpdateVehiclePosition(_ context.Context, vehicleID string, lat, lon float64) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("vehicle %s not found", vehicleID)
	}
	v.Latitude = lat
	v.Longitude = lon
	v.UpdatedAt = time.Now().UnixMilli()
	cp := *v
	return &cp, nil
}

func (m *memStore) GetBin(_ context.Context, binID string) (*models.Bin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bins[binID]
	if !ok {
		return nil, fmt.Errorf("bin %s not found", binID)
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) InsertReading(_ context.Context, r *models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, *r)
	return nil
}

func (m *memStore) InsertAlert(_ context.Context, a *models.SensorAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memStore) InsertCleaning(_ context.Context, c *models.Cleaning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCleanings {
		return fmt.Errorf("cleanings table unavailable")
	}
	m.cleanings = append(m.cleanings, *c)
	return nil
}

func (m *memStore) InsertActivity(_ context.Context, a *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failActivities {
		return fmt.Errorf("activities table unavailable")
	}
	m.activities = append(m.activities, *a)
	return nil
}

// stubPlanner returns a deterministic planned route, or a straight
// line marked as fallback when asked to fail.
type stubPlanner struct {
	mu       sync.Mutex
	calls    int
	fallback bool
}

func (p *stubPlanner) PlanRoute(_ context.Context, start, end geo.Point) routing.Result {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return routing.Result{
		Path:         geo.Interpolate(start, end, 4),
		DistanceKm:   geo.DistanceKm(start, end) * 1.3,
		DurationMin:  geo.EstimateDurationMin(geo.DistanceKm(start, end) * 1.3),
		UsedFallback: p.fallback,
	}
}

func (p *stubPlanner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type broadcastRecord struct {
	Event string
	Data  interface{}
}

type recordBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (r *recordBroadcaster) Broadcast(event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, broadcastRecord{Event: event, Data: data})
}

func (r *recordBroadcaster) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}
