package poi

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// MaxRadius is the largest radius the upstream keyword search accepts.
const MaxRadius = 20000

func generateNearbyCacheKey(center types.Coordinate, radius int) string {
	return fmt.Sprintf("poi_nearby:%f:%f:%d", center.Latitude, center.Longitude, radius)
}

func cloneResult(r *types.SearchResult) *types.SearchResult {
	out := *r
	out.Places = append([]types.Place(nil), r.Places...)
	if out.Places == nil {
		out.Places = []types.Place{}
	}
	return &out
}

// parseCoordinate reads lat/lng query parameters.
func parseCoordinate(q url.Values) (types.Coordinate, error) {
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return types.Coordinate{}, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return types.Coordinate{}, fmt.Errorf("invalid lng %q", q.Get("lng"))
	}
	return types.Coordinate{Latitude: lat, Longitude: lng}, nil
}

// parseRadius reads the radius query parameter, defaulting when absent.
func parseRadius(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	radius, err := strconv.Atoi(raw)
	if err != nil || radius <= 0 || radius > MaxRadius {
		return 0, fmt.Errorf("radius must be between 1 and %d meters", MaxRadius)
	}
	return radius, nil
}
