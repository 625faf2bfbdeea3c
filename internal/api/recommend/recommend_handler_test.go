package recommend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendHandler(t *testing.T) {
	h := NewHandlerImpl(NewPicker(WithRand(seeded())), slog.Default())

	t.Run("PicksFromBody", func(t *testing.T) {
		body := `{"candidates":[
			{"id":1,"name":"국밥집","category_name":"음식점 > 한식","coordinate":{"latitude":37.5,"longitude":127}},
			{"id":"2","name":"카페","category_name":"음식점 > 카페","coordinate":{"latitude":37.5,"longitude":127}}
		],"include":"","exclude":"카페","count":3}`
		rr := httptest.NewRecorder()
		h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var res PickResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		require.Len(t, res.Places, 1)
		assert.Equal(t, "1", res.Places[0].ID.String())
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{"candidates":[]}`)))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "식당이 없습니다.")
	})

	t.Run("InvalidCandidate", func(t *testing.T) {
		body := `{"candidates":[{"id":"1","name":"","category_name":"x","coordinate":{"latitude":37,"longitude":127}}]}`
		rr := httptest.NewRecorder()
		h.Recommend(rr, httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
