package bookmark

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

func TestRepositoryList(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pool.ExpectQuery(regexp.QuoteMeta(`FROM bookmarks`)).
		WithArgs(userA).
		WillReturnRows(pgxmock.NewRows([]string{"place", "liked", "created_at", "updated_at"}).
			AddRow([]byte(`{"id":"26338954","name":"을지면옥","category_name":"음식점 > 한식","coordinate":{"latitude":37.566,"longitude":126.99}}`), true, created, created).
			AddRow([]byte(`{"id":12345,"name":"숫자 아이디","category_name":"음식점","coordinate":{"latitude":37.5,"longitude":127}}`), false, created, created))

	set, err := repo.List(context.Background(), userA)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.True(t, set["26338954"].Liked)
	assert.Equal(t, "을지면옥", set["26338954"].Name)
	assert.True(t, set.Has("12345"))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositoryUpsert(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())

	now := time.Now().UTC()
	b := types.Bookmark{Place: types.Place{ID: "1", Name: "국밥집"}, CreatedAt: now, UpdatedAt: now}
	snapshot, err := json.Marshal(b.Place)
	require.NoError(t, err)

	pool.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookmarks`)).
		WithArgs(userA, "1", snapshot, false, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), userA, b))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestRepositorySetLikedAndDelete(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	repo := NewRepositoryImpl(pool, slog.Default())
	ctx := context.Background()

	pool.ExpectExec(regexp.QuoteMeta(`UPDATE bookmarks SET liked`)).
		WithArgs(userA, "missing", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookmarks WHERE user_id = $1 AND place_id = $2`)).
		WithArgs(userA, "1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	pool.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookmarks WHERE user_id = $1`)).
		WithArgs(userA).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	assert.ErrorIs(t, repo.SetLiked(ctx, userA, "missing", true), ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, userA, "1"))
	assert.NoError(t, repo.Clear(ctx, userA))
	assert.NoError(t, pool.ExpectationsWereMet())
}
