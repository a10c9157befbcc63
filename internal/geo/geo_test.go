package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	bin := Point{Latitude: 39.6743, Longitude: 66.9738}

	near := Point{Latitude: 39.6750, Longitude: 66.9740}
	far := Point{Latitude: 39.6800, Longitude: 66.9800}

	dNear := DistanceKm(bin, near)
	dFar := DistanceKm(bin, far)

	if dNear < 0.05 || dNear > 0.15 {
		t.Fatalf("near distance out of range: %f", dNear)
	}
	if dFar < 0.6 || dFar > 1.2 {
		t.Fatalf("far distance out of range: %f", dFar)
	}
	if dNear >= dFar {
		t.Fatalf("expected near < far, got %f >= %f", dNear, dFar)
	}
}

func TestDistanceKmZero(t *testing.T) {
	p := Point{Latitude: 39.6743, Longitude: 66.9738}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestEstimateDurationMin(t *testing.T) {
	if got := EstimateDurationMin(5); got != 10 {
		t.Fatalf("5 km should be 10 min at 30 km/h, got %d", got)
	}
	if got := EstimateDurationMin(0.01); got != 1 {
		t.Fatalf("tiny distance should floor to 1 min, got %d", got)
	}
}

func TestInterpolate(t *testing.T) {
	start := Point{Latitude: 39.67, Longitude: 66.97}
	end := Point{Latitude: 39.68, Longitude: 66.98}

	path := Interpolate(start, end, 10)
	if len(path) != 11 {
		t.Fatalf("expected 11 points, got %d", len(path))
	}
	if path[0] != [2]float64{39.67, 66.97} {
		t.Fatalf("wrong start point: %v", path[0])
	}
	if math.Abs(path[10][0]-39.68) > 1e-9 || math.Abs(path[10][1]-66.98) > 1e-9 {
		t.Fatalf("wrong end point: %v", path[10])
	}
	// Midpoint sanity.
	if math.Abs(path[5][0]-39.675) > 1e-9 {
		t.Fatalf("wrong midpoint latitude: %v", path[5])
	}
}

func TestBoundsClamp(t *testing.T) {
	inside := Point{Latitude: 39.6743, Longitude: 66.9738}
	if !Samarkand.Contains(inside) {
		t.Fatal("expected point inside Samarkand bounds")
	}
	if got := Samarkand.Clamp(inside); got != inside {
		t.Fatalf("clamp changed an in-bounds point: %v", got)
	}

	outside := Point{Latitude: 41.31, Longitude: 69.24} // Tashkent
	clamped := Samarkand.Clamp(outside)
	if !Samarkand.Contains(clamped) {
		t.Fatalf("clamped point still outside bounds: %v", clamped)
	}
	if clamped.Latitude != Samarkand.North || clamped.Longitude != Samarkand.East {
		t.Fatalf("expected clamp to north-east corner, got %v", clamped)
	}
}
