package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"tozahudud-backend/internal/models"
)

// scheduleTimeout arms the supervisor for one assignment. Re-arming
// the same route replaces the previous timer.
func (e *Engine) scheduleTimeout(routeID, vehicleID, binID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if old, ok := e.timers[routeID]; ok {
		old.Stop()
	}
	e.timers[routeID] = time.AfterFunc(e.timeout, func() {
		e.handleTimeout(routeID, vehicleID, binID)
	})
}

func (e *Engine) cancelTimeout(routeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[routeID]; ok {
		t.Stop()
		delete(e.timers, routeID)
	}
}

// handleTimeout reclaims a stuck assignment: cancel the route, free
// the vehicle and retry the bin with the stuck vehicle excluded. The
// cancel transaction is the arbiter, so a completion that races the
// timer wins cleanly and the timeout becomes a no-op.
func (e *Engine) handleTimeout(routeID, vehicleID, binID string) {
	e.cancelTimeout(routeID)
	ctx := context.Background()

	out, err := e.store.CancelAssignment(ctx, routeID)
	if err != nil {
		log.Printf("timeout for route %s: cancel failed: %v", routeID, err)
		return
	}
	if !out.Cancelled {
		return
	}
	e.metrics.RecordTimeout()
	log.Printf("timeout: reclaimed %s from route %s (bin %s)", vehicleID, routeID, binID)

	if out.VehicleReset && out.Vehicle != nil {
		e.broadcaster.Broadcast(EventVehicleState, VehicleStateEvent{
			VehicleID:    out.Vehicle.VehicleID,
			Status:       out.Vehicle.Status,
			IsPatrolling: true,
			TargetBinID:  nil,
			Timeout:      true,
		})
	}

	e.logActivity(ctx, models.ActivityDispatchTimeout,
		"Assignment timed out",
		fmt.Sprintf("%s did not reach bin %s in time, reassigning", vehicleID, binID),
		"", strPtr(binID), strPtr(vehicleID))

	if _, err := e.AssignNearestVehicle(ctx, binID, AssignOptions{
		Trigger:           "timeout-reassign",
		ExcludeVehicleIDs: []string{vehicleID},
	}); err != nil {
		log.Printf("timeout for route %s: reassignment failed: %v", routeID, err)
	}
}

// ReclaimStale is the restart half of the supervisor: routes that were
// active when the previous process died either get their timer
// re-armed for the remaining window or, if already overdue, are
// reclaimed immediately.
func (e *Engine) ReclaimStale(ctx context.Context) error {
	routes, err := e.store.ActiveRoutes(ctx)
	if err != nil {
		return fmt.Errorf("list active routes: %w", err)
	}
	now := time.Now().UnixMilli()
	for i := range routes {
		r := routes[i]
		age := time.Duration(now-r.CreatedAt) * time.Millisecond
		if age >= e.timeout {
			go e.handleTimeout(r.ID, r.VehicleID, r.BinID)
			continue
		}
		e.mu.Lock()
		if !e.closed {
			id, vid, bid := r.ID, r.VehicleID, r.BinID
			e.timers[id] = time.AfterFunc(e.timeout-age, func() {
				e.handleTimeout(id, vid, bid)
			})
		}
		e.mu.Unlock()
	}
	if len(routes) > 0 {
		log.Printf("supervisor: recovered %d active assignment(s)", len(routes))
	}
	return nil
}
