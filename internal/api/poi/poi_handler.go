package poi

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/internal/api"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

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

type searchPlacesResponse struct {
	Places []types.Place `json:"places"`
}

// NearbyPlaces aggregates restaurants around the given coordinate.
func (h *HandlerImpl) NearbyPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("POIHandler").Start(r.Context(), "NearbyPlaces", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/places/nearby"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "NearbyPlaces"))
	l.DebugContext(ctx, "Nearby places handler invoked")

	q := r.URL.Query()
	center, err := parseCoordinate(q)
	if err != nil {
		l.WarnContext(ctx, "Invalid coordinate", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	radius, err := parseRadius(q.Get("radius"), h.defaultRadius)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.FetchNearby(ctx, center, radius)
	if err != nil {
		l.ErrorContext(ctx, "Nearby search aborted", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, types.NoticeSearchError.Message)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// SearchPlaces resolves a free-text query into candidate centers.
func (h *HandlerImpl) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("POIHandler").Start(r.Context(), "SearchPlaces", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/places/search"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SearchPlaces"))

	places, err := h.service.SearchPlaces(ctx, r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		l.ErrorContext(ctx, "Place search failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, types.NoticeSearchError.Message)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, searchPlacesResponse{Places: places})
}
