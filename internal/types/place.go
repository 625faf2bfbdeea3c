package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// DefaultCenter is the map center used before the user picks a location (Seoul City Hall).
var DefaultCenter = Coordinate{Latitude: 37.5665, Longitude: 126.9780}

// PlaceID is a place identifier. Upstream sources send it either as a JSON
// string or a JSON number; both decode to the same string form.
type PlaceID string

func (id *PlaceID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PlaceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("place id must be a string or number: %w", err)
	}
	*id = PlaceID(n.String())
	return nil
}

func (id PlaceID) String() string { return string(id) }

// Place is a point of interest returned by the local search API.
type Place struct {
	ID                PlaceID    `json:"id" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	RoadAddress       string     `json:"road_address,omitempty"`
	Address           string     `json:"address,omitempty"`
	CategoryName      string     `json:"category_name"`
	CategoryGroupCode string     `json:"category_group_code,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Coordinate        Coordinate `json:"coordinate"`
	DetailURL         string     `json:"detail_url,omitempty"`
	// Distance in meters, either reported upstream or computed from the user's position.
	Distance *int `json:"distance,omitempty"`
}

// PrimaryAddress returns the road address, falling back to the lot address.
func (p Place) PrimaryAddress() string {
	if p.RoadAddress != "" {
		return p.RoadAddress
	}
	return p.Address
}

// SearchResult is the outcome of a nearby search. An empty result carries a
// notice rather than an error.
type SearchResult struct {
	Places []Place    `json:"places"`
	Pages  int        `json:"pages"`
	Notice *Notice    `json:"notice,omitempty"`
	Center Coordinate `json:"center"`
	Radius int        `json:"radius"`
}

// FilterCriteria holds the parsed include/exclude category terms.
type FilterCriteria struct {
	Include string   `json:"include"`
	Exclude []string `json:"exclude"`
}

// LocationFix is a device geolocation result as reported by the client.
type LocationFix struct {
	Granted    bool       `json:"granted"`
	Coordinate Coordinate `json:"coordinate"`
}
