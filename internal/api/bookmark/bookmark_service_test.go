package bookmark

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

const userA = "user-a"

var center = types.Coordinate{Latitude: 37.5665, Longitude: 126.9780}

func testPlace(id string, lat, lng float64) types.Place {
	return types.Place{
		ID:           types.PlaceID(id),
		Name:         "place " + id,
		CategoryName: "음식점 > 한식",
		Coordinate:   types.Coordinate{Latitude: lat, Longitude: lng},
	}
}

func newTestService(repo Repository) *ServiceImpl {
	picker := recommend.NewPicker(recommend.WithRand(rand.New(rand.NewPCG(7, 7))))
	return NewServiceImpl(repo, NewLocalNotifier(), picker, slog.Default())
}

// recorder collects subscription deliveries.
type recorder struct {
	mu   sync.Mutex
	sets []types.BookmarkSet
}

func (r *recorder) onChange(set types.BookmarkSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, set)
}

func (r *recorder) last() types.BookmarkSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sets) == 0 {
		return nil
	}
	return r.sets[len(r.sets)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

func TestServiceSubscribe(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository()
	svc := newTestService(repo)

	_, err := svc.Add(ctx, userA, testPlace("1", 37.5665, 126.978))
	require.NoError(t, err)

	rec := &recorder{}
	unsubscribe, err := svc.Subscribe(ctx, userA, rec.onChange)
	require.NoError(t, err)

	require.Equal(t, 1, rec.count())
	assert.True(t, rec.last().Has("1"))

	_, err = svc.Add(ctx, userA, testPlace("2", 37.5665, 126.978))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return rec.last().Has("2") }, time.Second, 5*time.Millisecond)

	unsubscribe()
	time.Sleep(20 * time.Millisecond)
	seen := rec.count()
	require.NoError(t, svc.Remove(ctx, userA, "1"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, rec.count())
}

func TestServiceAdd(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository())

	t.Run("StripsDistanceFromSnapshot", func(t *testing.T) {
		p := testPlace("1", 37.5, 127)
		d := 120
		p.Distance = &d
		b, err := svc.Add(ctx, userA, p)
		require.NoError(t, err)
		assert.Nil(t, b.Distance)
		assert.False(t, b.CreatedAt.IsZero())
	})

	t.Run("RequiresID", func(t *testing.T) {
		_, err := svc.Add(ctx, userA, types.Place{Name: "no id"})
		assert.ErrorIs(t, err, ErrInvalidPlace)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		repo := newMemRepository()
		repo.failWrites(1)
		_, err := newTestService(repo).Add(ctx, userA, testPlace("1", 37.5, 127))
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestServiceRecommendOne(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository())

	_, err := svc.RecommendOne(ctx, userA, false)
	assert.ErrorIs(t, err, ErrNoBookmarks)

	for _, id := range []string{"1", "2", "3"} {
		_, err := svc.Add(ctx, userA, testPlace(id, 37.5, 127))
		require.NoError(t, err)
	}

	_, err = svc.RecommendOne(ctx, userA, true)
	assert.ErrorIs(t, err, ErrNoLikedBookmarks)

	require.NoError(t, svc.SetLiked(ctx, userA, "2", true))
	for i := 0; i < 10; i++ {
		b, err := svc.RecommendOne(ctx, userA, true)
		require.NoError(t, err)
		assert.Equal(t, "2", b.ID.String())
		assert.True(t, b.Liked)
	}

	b, err := svc.RecommendOne(ctx, userA, false)
	require.NoError(t, err)
	assert.Contains(t, []string{"1", "2", "3"}, b.ID.String())
}

func TestServiceInRadius(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository())

	_, err := svc.Add(ctx, userA, testPlace("near", 37.5670, 126.9780))
	require.NoError(t, err)
	_, err = svc.Add(ctx, userA, testPlace("far", 37.6500, 126.9780))
	require.NoError(t, err)

	got, err := svc.InRadius(ctx, userA, center, 2000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID.String())
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 56, *got[0].Distance, 2)
}

func TestServiceClearAndLike(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository())

	assert.ErrorIs(t, svc.SetLiked(ctx, userA, "missing", true), ErrNotFound)

	_, err := svc.Add(ctx, userA, testPlace("1", 37.5, 127))
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, userA))

	set, err := svc.List(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, set)
}
