package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/internal/api"
	"github.com/FACorreiaa/go-eat-today/internal/api/auth"
	"github.com/FACorreiaa/go-eat-today/internal/api/bookmark"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// HeaderSessionID carries the session id in both directions.
const HeaderSessionID = "X-Session-ID"

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

type locateRequest struct {
	Granted    bool              `json:"granted"`
	Coordinate *types.Coordinate `json:"coordinate" validate:"required_if=Granted true"`
}

type centerRequest struct {
	Coordinate types.Coordinate `json:"coordinate" validate:"required"`
}

type modeRequest struct {
	Bookmarks *bool `json:"bookmarks" validate:"required"`
}

type toggleResponse struct {
	types.ToggleResult
	View *View `json:"view"`
}

func (h *HandlerImpl) startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("SessionHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

// open resolves the caller's session and binds it to the authenticated user,
// if any. The session id is echoed back in the response header.
func (h *HandlerImpl) open(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sess, err := h.service.Open(r.Context(), r.Header.Get(HeaderSessionID), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to open session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to open session")
		return nil, false
	}
	w.Header().Set(HeaderSessionID, sess.ID)
	return sess, true
}

// GetSession renders the caller's session.
func (h *HandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "GetSession", "/api/v1/session")
	defer span.End()

	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

// Locate applies a device geolocation result and searches around it.
func (h *HandlerImpl) Locate(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "Locate", "/api/v1/session/locate")
	defer span.End()
	ctx := r.Context()

	var req locateRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.open(w, r)
	if !ok {
		return
	}

	fix := types.LocationFix{Granted: req.Granted}
	if req.Coordinate != nil {
		fix.Coordinate = *req.Coordinate
	}
	if err := h.service.Locate(ctx, sess, fix); err != nil {
		h.logger.ErrorContext(ctx, "Locate failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, types.NoticeSearchError.Message)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

// SelectCenter moves the map center to a chosen search result.
func (h *HandlerImpl) SelectCenter(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "SelectCenter", "/api/v1/session/center")
	defer span.End()
	ctx := r.Context()

	var req centerRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.open(w, r)
	if !ok {
		return
	}

	if err := h.service.SelectCenter(ctx, sess, req.Coordinate); err != nil {
		h.logger.ErrorContext(ctx, "Select center failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, types.NoticeSearchError.Message)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

func (h *HandlerImpl) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "UpdateSettings", "/api/v1/session/settings")
	defer span.End()

	var req Settings
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateSettings(r.Context(), sess, req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

func (h *HandlerImpl) SetMode(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "SetMode", "/api/v1/session/mode")
	defer span.End()

	var req modeRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	h.service.SetMode(r.Context(), sess, *req.Bookmarks)
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

// Spin picks restaurants for the session's current mode. Empty pools are
// reported through the view's notices.
func (h *HandlerImpl) Spin(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "Spin", "/api/v1/session/spin")
	defer span.End()
	ctx := r.Context()

	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := h.service.Spin(ctx, sess); err != nil {
		h.logger.ErrorContext(ctx, "Spin failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, types.NoticeSearchError.Message)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sess.View())
}

// ToggleBookmark flips the bookmark of a place shown in the session. The
// store write completes in the background.
func (h *HandlerImpl) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	r, span := h.startSpan(r, "ToggleBookmark", "/api/v1/session/bookmarks/{placeID}/toggle")
	defer span.End()
	ctx := r.Context()

	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	res, err := h.service.Toggle(ctx, sess, chi.URLParam(r, "placeID"))
	switch {
	case errors.Is(err, bookmark.ErrLoginRequired):
		api.NoticeResponse(w, r, http.StatusUnauthorized, types.NoticeLoginRequired)
		return
	case errors.Is(err, ErrPlaceNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, bookmark.ErrInvalidPlace):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "Toggle failed", slog.String("session_id", sess.ID), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to toggle bookmark")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusAccepted, toggleResponse{ToggleResult: res, View: sess.View()})
}
