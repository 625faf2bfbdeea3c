package bookmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/internal/api"
	"github.com/FACorreiaa/go-eat-today/internal/api/auth"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

const (
	EventTypeBookmarks = "bookmarks"
	EventTypeError     = "error"
)

// StreamEvent is one server-sent event of the live bookmark stream.
type StreamEvent struct {
	Type      string           `json:"type"`
	Bookmarks []types.Bookmark `json:"bookmarks,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	EventID   string           `json:"event_id"`
}

type setLikedRequest struct {
	Liked *bool `json:"liked" validate:"required"`
}

type HandlerImpl struct {
	service       Service
	defaultRadius int
	logger        *slog.Logger
}

func NewHandlerImpl(service Service, defaultRadius int, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service:       service,
		defaultRadius: defaultRadius,
		logger:        logger,
	}
}

func (h *HandlerImpl) startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("BookmarkHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

func (h *HandlerImpl) requireUser(w http.ResponseWriter, r *http.Request, span trace.Span) (string, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.NoticeResponse(w, r, http.StatusUnauthorized, types.NoticeLoginRequired)
		return "", false
	}
	span.SetAttributes(semconv.EnduserIDKey.String(userID))
	return userID, true
}

func (h *HandlerImpl) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "ListBookmarks", "/api/v1/bookmarks")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	set, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list bookmarks", slog.String("user_id", userID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, set.Bookmarks())
}

func (h *HandlerImpl) AddBookmark(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "AddBookmark", "/api/v1/bookmarks")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	var place types.Place
	if err := api.DecodeAndValidate(w, r, &place); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.service.Add(r.Context(), userID, place)
	if err != nil {
		if errors.Is(err, ErrInvalidPlace) {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		api.NoticeResponse(w, r, http.StatusInternalServerError, types.NoticeBookmarkWriteFailed)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, b)
}

func (h *HandlerImpl) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "RemoveBookmark", "/api/v1/bookmarks/{placeID}")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "placeID")); err != nil {
		if errors.Is(err, ErrInvalidPlace) {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		api.NoticeResponse(w, r, http.StatusInternalServerError, types.NoticeBookmarkWriteFailed)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ClearBookmarks deletes every bookmark of the caller.
func (h *HandlerImpl) ClearBookmarks(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "ClearBookmarks", "/api/v1/bookmarks")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), userID); err != nil {
		api.NoticeResponse(w, r, http.StatusInternalServerError, types.NoticeBookmarkWriteFailed)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) SetLiked(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "SetLiked", "/api/v1/bookmarks/{placeID}/like")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	var req setLikedRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := h.service.SetLiked(r.Context(), userID, chi.URLParam(r, "placeID"), *req.Liked)
	switch {
	case errors.Is(err, ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, err.Error())
	case err != nil:
		api.NoticeResponse(w, r, http.StatusInternalServerError, types.NoticeBookmarkWriteFailed)
	default:
		api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
	}
}

// RecommendBookmark picks one random bookmark; ?liked=true limits the pool
// to liked ones.
func (h *HandlerImpl) RecommendBookmark(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "RecommendBookmark", "/api/v1/bookmarks/recommend")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	likedOnly, _ := strconv.ParseBool(r.URL.Query().Get("liked"))
	b, err := h.service.RecommendOne(r.Context(), userID, likedOnly)
	switch {
	case errors.Is(err, ErrNoBookmarks):
		api.NoticeResponse(w, r, http.StatusNotFound, types.NoticeNoSavedBookmarks)
	case errors.Is(err, ErrNoLikedBookmarks):
		api.NoticeResponse(w, r, http.StatusNotFound, types.NoticeNoLikedBookmarks)
	case err != nil:
		h.logger.ErrorContext(r.Context(), "Bookmark recommendation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to recommend bookmark")
	default:
		api.WriteJSONResponse(w, r, http.StatusOK, b)
	}
}

func (h *HandlerImpl) NearbyBookmarks(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "NearbyBookmarks", "/api/v1/bookmarks/nearby")
	defer span.End()
	userID, ok := h.requireUser(w, r, span)
	if !ok {
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	center := types.Coordinate{Latitude: lat, Longitude: lng}
	if errLat != nil || errLng != nil || api.Validate(center) != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}
	radius := h.defaultRadius
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "radius must be a positive integer")
			return
		}
		radius = v
	}

	out, err := h.service.InRadius(r.Context(), userID, center, radius)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, out)
}

// StreamBookmarks pushes the caller's bookmark set as server-sent events on
// connect and after every change.
func (h *HandlerImpl) StreamBookmarks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := r.Context()
	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		h.writeSSEError(w, types.NoticeLoginRequired.Message)
		return
	}
	l := h.logger.With(slog.String("handler", "StreamBookmarks"), slog.String("user_id", userID))

	updates := make(chan types.BookmarkSet, 1)
	unsubscribe, err := h.service.Subscribe(ctx, userID, func(set types.BookmarkSet) {
		for {
			select {
			case updates <- set:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	if err != nil {
		l.ErrorContext(ctx, "Failed to subscribe", slog.Any("error", err))
		h.writeSSEError(w, "failed to subscribe to bookmarks")
		return
	}
	defer unsubscribe()
	l.InfoContext(ctx, "Bookmark stream opened")

	for {
		select {
		case set := <-updates:
			h.writeSSE(w, StreamEvent{
				Type:      EventTypeBookmarks,
				Bookmarks: set.Bookmarks(),
				Timestamp: time.Now(),
				EventID:   uuid.NewString(),
			})
			flusher.Flush()
		case <-ctx.Done():
			l.InfoContext(ctx, "Client disconnected")
			return
		}
	}
}

func (h *HandlerImpl) writeSSE(w http.ResponseWriter, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal stream event", slog.Any("error", err))
		return
	}
	fmt.Fprintf(w, "id: %s\n", event.EventID)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *HandlerImpl) writeSSEError(w http.ResponseWriter, errorMsg string) {
	h.writeSSE(w, StreamEvent{
		Type:      EventTypeError,
		Error:     errorMsg,
		Timestamp: time.Now(),
		EventID:   uuid.NewString(),
	})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
