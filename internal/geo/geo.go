package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Bounds is a rectangular operating region.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Samarkand is the operating region for the fleet. Upstream GPS data is
// occasionally garbage, so routing inputs get clamped into this box.
var Samarkand = Bounds{
	North: 39.70,
	South: 39.62,
	East:  67.00,
	West:  66.92,
}

// DistanceKm returns the great-circle distance between two points in
// kilometers (haversine).
func DistanceKm(a, b Point) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// EstimateDurationMin estimates travel time in minutes for the given
// distance assuming a 30 km/h average speed. Never returns less than 1.
func EstimateDurationMin(distanceKm float64) int {
	min := int(math.Round(distanceKm * 2))
	if min < 1 {
		min = 1
	}
	return min
}

// Interpolate builds a straight-line path of segments+1 evenly spaced
// points from start to end, inclusive of both endpoints.
func Interpolate(start, end Point, segments int) [][2]float64 {
	path := make([][2]float64, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		path = append(path, [2]float64{
			start.Latitude + (end.Latitude-start.Latitude)*t,
			start.Longitude + (end.Longitude-start.Longitude)*t,
		})
	}
	return path
}

// Contains reports whether p lies inside the bounds.
func (b Bounds) Contains(p Point) bool {
	return p.Latitude >= b.South && p.Latitude <= b.North &&
		p.Longitude >= b.West && p.Longitude <= b.East
}

// Clamp constrains p into the bounds.
func (b Bounds) Clamp(p Point) Point {
	return Point{
		Latitude:  math.Max(b.South, math.Min(b.North, p.Latitude)),
		Longitude: math.Max(b.West, math.Min(b.East, p.Longitude)),
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
