// Package dispatch implements the assignment engine: sensor readings
// drive a bin fill model, full bins trigger atomic vehicle
// assignment, a supervisor reclaims stuck assignments, and the
// completion protocol releases vehicles and empties bins.
//
// Every operation splits in two phases. Phase one is a single
// transaction behind the Store interface and decides the outcome.
// Phase two is best-effort work on top of the committed state:
// external route planning, websocket broadcasts, activity logging.
// Phase two failures never undo phase one.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tozahudud-backend/internal/geo"
	"tozahudud-backend/internal/metrics"
	"tozahudud-backend/internal/models"
	"tozahudud-backend/internal/routing"
)

// RoutePlanner produces road geometry between two points. The planner
// is infallible: when the road service cannot be reached it returns a
// straight-line fallback, so planning can never abort a dispatch.
type RoutePlanner interface {
	PlanRoute(ctx context.Context, start, end geo.Point) routing.Result
}

// Engine coordinates the dispatch lifecycle on top of a Store.
type Engine struct {
	store       Store
	planner     RoutePlanner
	broadcaster Broadcaster
	metrics     *metrics.Sink
	timeout     time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New builds an Engine. broadcaster and sink may be nil; timeout <= 0
// selects the default assignment timeout.
func New(store Store, planner RoutePlanner, broadcaster Broadcaster, sink *metrics.Sink, timeout time.Duration) (*Engine, error) {
	if store == nil {
		return nil, errors.New("dispatch: store is required")
	}
	if planner == nil {
		return nil, errors.New("dispatch: route planner is required")
	}
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if timeout <= 0 {
		timeout = DefaultAssignmentTimeout
	}
	return &Engine{
		store:       store,
		planner:     planner,
		broadcaster: broadcaster,
		metrics:     sink,
		timeout:     timeout,
		timers:      make(map[string]*time.Timer),
	}, nil
}

// Close stops the timeout supervisor. Pending assignments stay in the
// database and are reclaimed on the next restart via ReclaimStale.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// logActivity writes a feed entry. Activity logging is a side channel:
// failures are logged and swallowed.
func (e *Engine) logActivity(ctx context.Context, typ, title, description, location string, binID, vehicleID *string) {
	a := &models.Activity{
		ID:          uuid.NewString(),
		Type:        typ,
		Title:       title,
		Description: description,
		Location:    location,
		BinID:       binID,
		VehicleID:   vehicleID,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := e.store.InsertActivity(ctx, a); err != nil {
		log.Printf("activity log failed (%s): %v", typ, err)
	}
}

func strPtr(s string) *string { return &s }
