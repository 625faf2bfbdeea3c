package poi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/config"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) SearchKeyword(ctx context.Context, q KeywordQuery) (*Page, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Page), args.Error(1)
}

func (m *MockClient) SearchAddress(ctx context.Context, query string) (*Page, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Page), args.Error(1)
}

var seoul = types.Coordinate{Latitude: 37.5665, Longitude: 126.9780}

func makePage(prefix string, n int) *Page {
	places := make([]types.Place, 0, n)
	for i := 0; i < n; i++ {
		places = append(places, types.Place{
			ID:           types.PlaceID(fmt.Sprintf("%s-%d", prefix, i)),
			Name:         fmt.Sprintf("%s place %d", prefix, i),
			CategoryName: "음식점 > 한식",
			Coordinate:   seoul,
		})
	}
	return &Page{Places: places, DocumentCount: n}
}

func pageQuery(page int) KeywordQuery {
	return KeywordQuery{Query: "식당", Center: &seoul, Radius: 2000, Page: page}
}

func newTestService(client Client, ttl time.Duration) *ServiceImpl {
	return NewServiceImpl(client, config.SearchConfig{
		Query:              "식당",
		MaxPages:           3,
		DefaultRadius:      2000,
		CacheTTL:           ttl,
		PlaceCategoryGroup: "AT4",
	}, slog.Default())
}

func TestFetchNearby(t *testing.T) {
	ctx := context.Background()

	t.Run("AccumulatesUntilShortPage", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 15), nil).Once()
		client.On("SearchKeyword", ctx, pageQuery(2)).Return(makePage("p2", 15), nil).Once()
		client.On("SearchKeyword", ctx, pageQuery(3)).Return(makePage("p3", 4), nil).Once()

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Len(t, result.Places, 34)
		assert.Equal(t, 3, result.Pages)
		assert.Nil(t, result.Notice)
		assert.Equal(t, types.PlaceID("p1-0"), result.Places[0].ID)
		assert.Equal(t, types.PlaceID("p3-3"), result.Places[33].ID)
		client.AssertNumberOfCalls(t, "SearchKeyword", 3)
		client.AssertExpectations(t)
	})

	t.Run("StopsAfterFirstShortPage", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 7), nil).Once()

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Len(t, result.Places, 7)
		assert.Equal(t, 1, result.Pages)
		client.AssertNumberOfCalls(t, "SearchKeyword", 1)
	})

	t.Run("NeverExceedsMaxPages", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, mock.AnythingOfType("poi.KeywordQuery")).Return(makePage("p", 15), nil)

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Len(t, result.Places, 45)
		client.AssertNumberOfCalls(t, "SearchKeyword", 3)
	})

	t.Run("EmptyResultCarriesNotice", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 0), nil).Once()

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Empty(t, result.Places)
		assert.NotNil(t, result.Places)
		require.NotNil(t, result.Notice)
		assert.Equal(t, types.NoticeNoRestaurantsNearby, *result.Notice)
	})

	t.Run("FailedPageTruncates", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 15), nil).Once()
		client.On("SearchKeyword", ctx, pageQuery(2)).Return(nil, errors.New("connection reset")).Once()

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Len(t, result.Places, 15)
		assert.Equal(t, 1, result.Pages)
		client.AssertNumberOfCalls(t, "SearchKeyword", 2)
	})

	t.Run("FirstPageFailureYieldsEmptyResult", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(nil, &APIError{Status: 500}).Once()

		result, err := newTestService(client, 0).FetchNearby(ctx, seoul, 2000)

		require.NoError(t, err)
		assert.Empty(t, result.Places)
		require.NotNil(t, result.Notice)
		assert.Equal(t, types.NoticeCodeNoRestaurantsNearby, result.Notice.Code)
	})

	t.Run("CancelledContextReturnsError", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		client := new(MockClient)
		client.On("SearchKeyword", mock.Anything, mock.Anything).Return(nil, context.Canceled).Once()

		result, err := newTestService(client, 0).FetchNearby(cctx, seoul, 2000)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	})

	t.Run("ServesRepeatedSearchFromCache", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 3), nil).Once()
		svc := newTestService(client, time.Minute)

		first, err := svc.FetchNearby(ctx, seoul, 2000)
		require.NoError(t, err)
		second, err := svc.FetchNearby(ctx, seoul, 2000)
		require.NoError(t, err)

		assert.Equal(t, first.Places, second.Places)
		client.AssertNumberOfCalls(t, "SearchKeyword", 1)

		second.Places[0].Name = "mutated"
		third, err := svc.FetchNearby(ctx, seoul, 2000)
		require.NoError(t, err)
		assert.Equal(t, "p1 place 0", third.Places[0].Name)
	})

	t.Run("DoesNotCacheTruncatedResult", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(nil, errors.New("timeout")).Once()
		client.On("SearchKeyword", ctx, pageQuery(1)).Return(makePage("p1", 2), nil).Once()
		svc := newTestService(client, time.Minute)

		first, err := svc.FetchNearby(ctx, seoul, 2000)
		require.NoError(t, err)
		assert.Empty(t, first.Places)

		second, err := svc.FetchNearby(ctx, seoul, 2000)
		require.NoError(t, err)
		assert.Len(t, second.Places, 2)
	})
}

func TestSearchPlaces(t *testing.T) {
	ctx := context.Background()
	scoped := KeywordQuery{Query: "강남역", CategoryGroup: "AT4"}

	t.Run("UnionsAddressFirst", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchAddress", mock.Anything, "강남역").Return(makePage("addr", 1), nil).Once()
		client.On("SearchKeyword", mock.Anything, scoped).Return(makePage("kw", 2), nil).Once()

		places, err := newTestService(client, 0).SearchPlaces(ctx, "  강남역 ")

		require.NoError(t, err)
		require.Len(t, places, 3)
		assert.Equal(t, types.PlaceID("addr-0"), places[0].ID)
		assert.Equal(t, types.PlaceID("kw-0"), places[1].ID)
		client.AssertExpectations(t)
	})

	t.Run("FallsBackToUnscopedKeyword", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchAddress", mock.Anything, "강남역").Return(makePage("addr", 0), nil).Once()
		client.On("SearchKeyword", mock.Anything, scoped).Return(makePage("kw", 0), nil).Once()
		client.On("SearchKeyword", ctx, KeywordQuery{Query: "강남역"}).Return(makePage("any", 2), nil).Once()

		places, err := newTestService(client, 0).SearchPlaces(ctx, "강남역")

		require.NoError(t, err)
		assert.Len(t, places, 2)
		client.AssertExpectations(t)
	})

	t.Run("EmptyEverywhere", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchAddress", mock.Anything, "강남역").Return(makePage("addr", 0), nil).Once()
		client.On("SearchKeyword", mock.Anything, mock.Anything).Return(makePage("kw", 0), nil).Twice()

		places, err := newTestService(client, 0).SearchPlaces(ctx, "강남역")

		require.NoError(t, err)
		assert.NotNil(t, places)
		assert.Empty(t, places)
	})

	t.Run("AnyFailureIsSearchError", func(t *testing.T) {
		client := new(MockClient)
		client.On("SearchAddress", mock.Anything, "강남역").Return(nil, &APIError{Status: 502}).Once()
		client.On("SearchKeyword", mock.Anything, scoped).Return(makePage("kw", 2), nil).Maybe()

		places, err := newTestService(client, 0).SearchPlaces(ctx, "강남역")

		assert.ErrorIs(t, err, ErrSearchFailed)
		assert.Nil(t, places)
	})

	t.Run("BlankQuery", func(t *testing.T) {
		client := new(MockClient)

		_, err := newTestService(client, 0).SearchPlaces(ctx, "   ")

		assert.ErrorIs(t, err, ErrEmptyQuery)
		client.AssertNotCalled(t, "SearchAddress", mock.Anything, mock.Anything)
	})
}
