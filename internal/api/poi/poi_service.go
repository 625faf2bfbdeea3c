package poi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-eat-today/app/observability/metrics"
	"github.com/FACorreiaa/go-eat-today/config"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var (
	ErrSearchFailed = errors.New("place search failed")
	ErrEmptyQuery   = errors.New("search query is required")
)

var _ Service = (*ServiceImpl)(nil)

// Service aggregates upstream local search results.
type Service interface {
	FetchNearby(ctx context.Context, center types.Coordinate, radius int) (*types.SearchResult, error)
	SearchPlaces(ctx context.Context, query string) ([]types.Place, error)
}

type ServiceImpl struct {
	logger        *slog.Logger
	client        Client
	cache         *cache.Cache
	query         string
	maxPages      int
	categoryGroup string
}

func NewServiceImpl(client Client, cfg config.SearchConfig, logger *slog.Logger) *ServiceImpl {
	s := &ServiceImpl{
		logger:        logger,
		client:        client,
		query:         cfg.Query,
		maxPages:      cfg.MaxPages,
		categoryGroup: cfg.PlaceCategoryGroup,
	}
	if s.query == "" {
		s.query = "식당"
	}
	if s.maxPages <= 0 {
		s.maxPages = 3
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return s
}

// FetchNearby requests up to maxPages pages sequentially around center and
// accumulates every returned place. It stops early on a short page. A failed
// page truncates the aggregation instead of aborting it, so the error return
// is reserved for context cancellation.
func (s *ServiceImpl) FetchNearby(ctx context.Context, center types.Coordinate, radius int) (*types.SearchResult, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "FetchNearby", trace.WithAttributes(
		attribute.Float64("center.lat", center.Latitude),
		attribute.Float64("center.lng", center.Longitude),
		attribute.Int("radius", radius),
	))
	defer span.End()

	m := metrics.Get()
	m.SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "nearby")))
	start := time.Now()
	defer func() {
		m.SearchDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	l := s.logger.With(slog.String("method", "FetchNearby"))

	cacheKey := generateNearbyCacheKey(center, radius)
	if s.cache != nil {
		if cached, found := s.cache.Get(cacheKey); found {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			l.DebugContext(ctx, "Nearby search served from cache", slog.String("cache_key", cacheKey))
			return cloneResult(cached.(*types.SearchResult)), nil
		}
	}

	var (
		all       []types.Place
		pages     int
		truncated bool
	)
	for page := 1; page <= s.maxPages; page++ {
		p, err := s.client.SearchKeyword(ctx, KeywordQuery{
			Query:  s.query,
			Center: &center,
			Radius: radius,
			Page:   page,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.RecordError(ctxErr)
				span.SetStatus(codes.Error, "search cancelled")
				return nil, ctxErr
			}
			l.WarnContext(ctx, "Page request failed, truncating results", slog.Int("page", page), slog.Any("error", err))
			span.RecordError(err)
			truncated = true
			break
		}
		pages++
		m.SearchPagesTotal.Add(ctx, 1)
		all = append(all, p.Places...)
		if p.DocumentCount < PageSize {
			break
		}
	}

	result := &types.SearchResult{
		Places: all,
		Pages:  pages,
		Center: center,
		Radius: radius,
	}
	if len(all) == 0 {
		result.Places = []types.Place{}
		result.Notice = types.NoticeNoRestaurantsNearby.Ptr()
	}

	span.SetAttributes(attribute.Int("places.count", len(all)), attribute.Int("pages", pages), attribute.Bool("truncated", truncated))
	span.SetStatus(codes.Ok, "nearby search completed")
	l.InfoContext(ctx, "Nearby search completed", slog.Int("places", len(all)), slog.Int("pages", pages), slog.Bool("truncated", truncated))

	if s.cache != nil && !truncated {
		s.cache.Set(cacheKey, cloneResult(result), cache.DefaultExpiration)
	}
	return result, nil
}

// SearchPlaces resolves free text into candidate search centers. The address
// lookup and the category-scoped keyword lookup run concurrently and are
// unioned; an empty union falls back to an unscoped keyword query.
func (s *ServiceImpl) SearchPlaces(ctx context.Context, query string) ([]types.Place, error) {
	ctx, span := otel.Tracer("POIService").Start(ctx, "SearchPlaces", trace.WithAttributes(
		attribute.String("query", query),
	))
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	metrics.Get().SearchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "place")))

	var addressPage, keywordPage *Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.client.SearchAddress(gctx, query)
		if err != nil {
			return fmt.Errorf("address lookup: %w", err)
		}
		addressPage = p
		return nil
	})
	g.Go(func() error {
		p, err := s.client.SearchKeyword(gctx, KeywordQuery{Query: query, CategoryGroup: s.categoryGroup})
		if err != nil {
			return fmt.Errorf("keyword lookup: %w", err)
		}
		keywordPage = p
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Place search failed", slog.String("query", query), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "place search failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	combined := make([]types.Place, 0, len(addressPage.Places)+len(keywordPage.Places))
	combined = append(combined, addressPage.Places...)
	combined = append(combined, keywordPage.Places...)
	if len(combined) > 0 {
		span.SetAttributes(attribute.Int("places.count", len(combined)))
		return combined, nil
	}

	s.logger.DebugContext(ctx, "Scoped lookups empty, falling back to unscoped keyword query", slog.String("query", query))
	fallback, err := s.client.SearchKeyword(ctx, KeywordQuery{Query: query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback search failed")
		return nil, fmt.Errorf("%w: fallback lookup: %w", ErrSearchFailed, err)
	}
	span.SetAttributes(attribute.Int("places.count", len(fallback.Places)), attribute.Bool("fallback", true))
	if fallback.Places == nil {
		return []types.Place{}, nil
	}
	return fallback.Places, nil
}
