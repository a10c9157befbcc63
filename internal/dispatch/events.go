package dispatch

import "tozahudud-backend/internal/models"

// Event names pushed over the realtime channel. Dashboard clients key
// their handlers on these strings.
const (
	EventSensorData       = "sensorData"
	EventBinStatus        = "binStatus"
	EventBinUpdate        = "binUpdate"
	EventDispatchAssigned = "dispatchAssigned"
	EventVehicleState     = "vehicleStateUpdate"
	EventVehiclePosition  = "vehiclePositionUpdate"
)

// Broadcaster fans an event out to every connected realtime client.
// Implementations must never block the caller for long: broadcasting
// is best-effort and a failed or absent broadcaster never fails a
// dispatch operation.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, interface{}) {}

// BinStatusEvent announces a bin's fill status change.
type BinStatusEvent struct {
	BinID     string `json:"binId"`
	Status    string `json:"status"`
	FillLevel int    `json:"fillLevel"`
}

// DispatchAssignedEvent announces a new vehicle assignment with its
// planned route.
type DispatchAssignedEvent struct {
	AssignmentID  string      `json:"assignmentId"`
	BinID         string      `json:"binId"`
	VehicleID     string      `json:"vehicleId"`
	DriverName    string      `json:"driverName"`
	Trigger       string      `json:"trigger"`
	RoutePath     models.Path `json:"routePath"`
	DistanceKm    float64     `json:"distanceKm"`
	DurationMin   int         `json:"estimatedDurationMin"`
	FallbackRoute bool        `json:"fallbackRoute"`
	AssignedAt    int64       `json:"assignedAt"`
}

// VehicleStateEvent announces a vehicle lifecycle change: dispatched,
// freed by completion, or freed by timeout.
type VehicleStateEvent struct {
	VehicleID    string      `json:"vehicleId"`
	Status       string      `json:"status"`
	IsPatrolling bool        `json:"isPatrolling"`
	TargetBinID  *string     `json:"targetBinId"`
	RouteID      *string     `json:"routeId,omitempty"`
	CurrentRoute models.Path `json:"currentRoute,omitempty"`
	Timeout      bool        `json:"timeout,omitempty"`
	CompletedAt  *int64      `json:"completedAt,omitempty"`
}

// VehiclePositionEvent announces a GPS fix.
type VehiclePositionEvent struct {
	VehicleID   string     `json:"vehicleId"`
	Position    [2]float64 `json:"position"`
	TargetBinID *string    `json:"targetBinId"`
}
