package geo

import (
	"math"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine great-circle distance in meters between two
// WGS84 coordinates. NaN inputs yield NaN.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceMeters is Distance rounded to the nearest meter.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) int {
	return int(math.Round(Distance(lat1, lon1, lat2, lon2)))
}

// Between returns the rounded distance between two coordinates.
func Between(a, b types.Coordinate) int {
	return DistanceMeters(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Within reports whether p lies within radius meters of center.
func Within(center, p types.Coordinate, radius int) bool {
	return Between(center, p) <= radius
}

// Annotate returns a copy of places with Distance measured from origin.
// When origin is nil the upstream distance, if any, is kept.
func Annotate(places []types.Place, origin *types.Coordinate) []types.Place {
	out := make([]types.Place, len(places))
	copy(out, places)
	if origin == nil {
		return out
	}
	for i := range out {
		d := Between(*origin, out[i].Coordinate)
		out[i].Distance = &d
	}
	return out
}

// FilterWithin keeps the places lying within radius meters of center.
func FilterWithin(places []types.Place, center types.Coordinate, radius int) []types.Place {
	var filtered []types.Place
	for _, p := range places {
		if Within(center, p.Coordinate, radius) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
