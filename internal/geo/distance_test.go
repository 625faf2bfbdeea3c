package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var (
	cityHall  = types.Coordinate{Latitude: 37.5665, Longitude: 126.9780}
	gangnam   = types.Coordinate{Latitude: 37.4979, Longitude: 127.0276}
	busan     = types.Coordinate{Latitude: 35.1796, Longitude: 129.0756}
	southPole = types.Coordinate{Latitude: -90, Longitude: 0}
)

func TestDistanceMeters(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		for _, c := range []types.Coordinate{cityHall, gangnam, busan, southPole} {
			assert.Equal(t, 0, Between(c, c))
		}
	})

	t.Run("symmetry", func(t *testing.T) {
		pairs := [][2]types.Coordinate{{cityHall, gangnam}, {gangnam, busan}, {busan, southPole}, {cityHall, southPole}}
		for _, p := range pairs {
			assert.Equal(t, Between(p[0], p[1]), Between(p[1], p[0]))
		}
	})

	t.Run("known distance", func(t *testing.T) {
		// Seoul City Hall to Gangnam station is roughly 8.8 km.
		d := Between(cityHall, gangnam)
		assert.InDelta(t, 8800, d, 200)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		d := DistanceMeters(0, 0, 1, 0)
		assert.Equal(t, int(math.Round(EarthRadiusMeters*math.Pi/180)), d)
	})

	t.Run("nan propagates", func(t *testing.T) {
		assert.True(t, math.IsNaN(Distance(math.NaN(), 0, 0, 0)))
	})
}

func TestWithinAndFilter(t *testing.T) {
	near := types.Place{ID: "1", Coordinate: types.Coordinate{Latitude: 37.5670, Longitude: 126.9785}}
	far := types.Place{ID: "2", Coordinate: gangnam}

	assert.True(t, Within(cityHall, near.Coordinate, 2000))
	assert.False(t, Within(cityHall, far.Coordinate, 2000))

	filtered := FilterWithin([]types.Place{near, far}, cityHall, 2000)
	require.Len(t, filtered, 1)
	assert.Equal(t, types.PlaceID("1"), filtered[0].ID)
}

func TestAnnotate(t *testing.T) {
	upstream := 42
	places := []types.Place{
		{ID: "1", Coordinate: cityHall, Distance: &upstream},
		{ID: "2", Coordinate: gangnam},
	}

	t.Run("without origin keeps upstream distance", func(t *testing.T) {
		out := Annotate(places, nil)
		require.NotNil(t, out[0].Distance)
		assert.Equal(t, 42, *out[0].Distance)
		assert.Nil(t, out[1].Distance)
	})

	t.Run("with origin computes distance and leaves input untouched", func(t *testing.T) {
		out := Annotate(places, &cityHall)
		require.NotNil(t, out[0].Distance)
		assert.Equal(t, 0, *out[0].Distance)
		require.NotNil(t, out[1].Distance)
		assert.Equal(t, Between(cityHall, gangnam), *out[1].Distance)
		assert.Equal(t, 42, *places[0].Distance)
		assert.Nil(t, places[1].Distance)
	})
}
