package recommend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/app/observability/metrics"
	"github.com/FACorreiaa/go-eat-today/internal/api"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

// PickRequest is a stateless recommendation request.
type PickRequest struct {
	Candidates []types.Place `json:"candidates" validate:"dive"`
	Include    string        `json:"include"`
	// Exclude is a comma separated list of category terms.
	Exclude string `json:"exclude"`
	Count   int    `json:"count" validate:"gte=0,lte=50"`
}

type HandlerImpl struct {
	picker *Picker
	logger *slog.Logger
}

func NewHandlerImpl(picker *Picker, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{picker: picker, logger: logger}
}

func (h *HandlerImpl) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RecommendHandler").Start(r.Context(), "Recommend", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/recommendations"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Recommend"))

	var req PickRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid recommendation request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.picker.Pick(req.Candidates, ParseCriteria(req.Include, req.Exclude), req.Count)
	if err != nil {
		if errors.Is(err, ErrNoCandidates) {
			api.NoticeResponse(w, r, http.StatusUnprocessableEntity, types.NoticeNoRestaurants)
			return
		}
		l.ErrorContext(ctx, "Pick failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to pick restaurants")
		return
	}
	RecordPick(ctx, res, "stateless")

	api.WriteJSONResponse(w, r, http.StatusOK, res)
}

// RecordPick updates pick counters for a completed spin.
func RecordPick(ctx context.Context, res *PickResult, source string) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.PicksTotal.Add(ctx, 1, attrs)
	if res.FallbackUsed {
		m.PickFallbacksTotal.Add(ctx, 1, attrs)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("pick.count", len(res.Places)),
		attribute.Int("pick.eligible", res.Eligible),
		attribute.Bool("pick.fallback", res.FallbackUsed),
	)
}
