package bookmark

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-eat-today/internal/api/auth"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

func newTestRouter(svc Service) http.Handler {
	h := NewHandlerImpl(svc, 2000, slog.Default())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if uid := req.Header.Get("X-Test-User"); uid != "" {
				req = req.WithContext(auth.WithUserID(req.Context(), uid))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/bookmarks", h.ListBookmarks)
	r.Post("/bookmarks", h.AddBookmark)
	r.Delete("/bookmarks", h.ClearBookmarks)
	r.Get("/bookmarks/recommend", h.RecommendBookmark)
	r.Get("/bookmarks/nearby", h.NearbyBookmarks)
	r.Get("/bookmarks/stream", h.StreamBookmarks)
	r.Delete("/bookmarks/{placeID}", h.RemoveBookmark)
	r.Put("/bookmarks/{placeID}/like", h.SetLiked)
	return r
}

func do(t *testing.T, h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerRequiresLogin(t *testing.T) {
	h := newTestRouter(newTestService(newMemRepository()))
	rr := do(t, h, http.MethodGet, "/bookmarks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), types.NoticeLoginRequired.Message)
}

func TestHandlerLifecycle(t *testing.T) {
	h := newTestRouter(newTestService(newMemRepository()))

	rr := do(t, h, http.MethodPost, "/bookmarks", userA,
		`{"id":"1","name":"국밥집","category_name":"음식점 > 한식","coordinate":{"latitude":37.5666,"longitude":126.978}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/bookmarks/recommend?liked=true", userA, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), types.NoticeNoLikedBookmarks.Message)

	rr = do(t, h, http.MethodPut, "/bookmarks/1/like", userA, `{"liked":true}`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/bookmarks/recommend?liked=true", userA, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var b types.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b))
	assert.Equal(t, "1", b.ID.String())

	rr = do(t, h, http.MethodGet, "/bookmarks/nearby?lat=37.5665&lng=126.978&radius=500", userA, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var near []types.Bookmark
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &near))
	assert.Len(t, near, 1)

	rr = do(t, h, http.MethodPut, "/bookmarks/2/like", userA, `{"liked":true}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/bookmarks/1", userA, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/bookmarks/recommend", userA, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), types.NoticeNoSavedBookmarks.Message)
}

func TestHandlerStream(t *testing.T) {
	svc := newTestService(newMemRepository())
	srv := httptest.NewServer(newTestRouter(svc))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/bookmarks/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-Test-User", userA)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan StreamEvent, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var ev StreamEvent
				if json.Unmarshal([]byte(data), &ev) == nil {
					events <- ev
				}
			}
		}
	}()

	first := <-events
	assert.Equal(t, EventTypeBookmarks, first.Type)
	assert.Empty(t, first.Bookmarks)

	_, err = svc.Add(ctx, userA, testPlace("9", 37.5, 127))
	require.NoError(t, err)

	select {
	case ev := <-events:
		require.Len(t, ev.Bookmarks, 1)
		assert.Equal(t, "9", ev.Bookmarks[0].ID.String())
	case <-ctx.Done():
		t.Fatal("no event after bookmark change")
	}
}
