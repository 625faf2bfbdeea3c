package bookmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-eat-today/app/observability/metrics"
	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/geo"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var (
	ErrInvalidPlace     = errors.New("place id is required")
	ErrNoBookmarks      = errors.New("no bookmarks saved")
	ErrNoLikedBookmarks = errors.New("no liked bookmarks")
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Subscribe calls onChange with the current set and again after every
	// change published for userID, until ctx ends or the returned func runs.
	// Calls to onChange are never concurrent.
	Subscribe(ctx context.Context, userID string, onChange func(types.BookmarkSet)) (func(), error)
	Add(ctx context.Context, userID string, place types.Place) (*types.Bookmark, error)
	Remove(ctx context.Context, userID, placeID string) error
	List(ctx context.Context, userID string) (types.BookmarkSet, error)
	Clear(ctx context.Context, userID string) error
	SetLiked(ctx context.Context, userID, placeID string, liked bool) error
	RecommendOne(ctx context.Context, userID string, likedOnly bool) (*types.Bookmark, error)
	InRadius(ctx context.Context, userID string, center types.Coordinate, radius int) ([]types.Bookmark, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	notifier Notifier
	picker   *recommend.Picker
	now      func() time.Time
}

func NewServiceImpl(repo Repository, notifier Notifier, picker *recommend.Picker, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		notifier: notifier,
		picker:   picker,
		now:      time.Now,
	}
}

func (s *ServiceImpl) Subscribe(ctx context.Context, userID string, onChange func(types.BookmarkSet)) (func(), error) {
	l := s.logger.With(slog.String("method", "Subscribe"), slog.String("user_id", userID))

	// Subscribe before the initial read so a write in between is not lost.
	changes, unsubscribe, err := s.notifier.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}
	set, err := s.repo.List(ctx, userID)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	onChange(set)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				set, err := s.repo.List(ctx, userID)
				if err != nil {
					if ctx.Err() == nil {
						l.WarnContext(ctx, "Failed to reload bookmarks after change", slog.Any("error", err))
					}
					continue
				}
				onChange(set)
			}
		}
	}()
	return cancel, nil
}

func (s *ServiceImpl) Add(ctx context.Context, userID string, place types.Place) (*types.Bookmark, error) {
	ctx, span := otel.Tracer("BookmarkService").Start(ctx, "Add", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("place.id", place.ID.String()),
	))
	defer span.End()

	if place.ID == "" {
		return nil, ErrInvalidPlace
	}
	now := s.now().UTC()
	b := types.Bookmark{Place: place, CreatedAt: now, UpdatedAt: now}
	b.Distance = nil

	if err := s.write(ctx, "add", userID, func() error { return s.repo.Upsert(ctx, userID, b) }); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bookmark add failed")
		return nil, err
	}
	return &b, nil
}

func (s *ServiceImpl) Remove(ctx context.Context, userID, placeID string) error {
	ctx, span := otel.Tracer("BookmarkService").Start(ctx, "Remove", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("place.id", placeID),
	))
	defer span.End()

	if placeID == "" {
		return ErrInvalidPlace
	}
	return s.write(ctx, "remove", userID, func() error { return s.repo.Delete(ctx, userID, placeID) })
}

func (s *ServiceImpl) Clear(ctx context.Context, userID string) error {
	return s.write(ctx, "clear", userID, func() error { return s.repo.Clear(ctx, userID) })
}

func (s *ServiceImpl) SetLiked(ctx context.Context, userID, placeID string, liked bool) error {
	return s.write(ctx, "like", userID, func() error { return s.repo.SetLiked(ctx, userID, placeID, liked) })
}

// write runs a store mutation and publishes a change signal on success.
func (s *ServiceImpl) write(ctx context.Context, op, userID string, fn func() error) error {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.BookmarkWritesTotal.Add(ctx, 1, attrs)

	if err := fn(); err != nil {
		m.BookmarkWriteFailures.Add(ctx, 1, attrs)
		s.logger.ErrorContext(ctx, "Bookmark write failed", slog.String("op", op), slog.String("user_id", userID), slog.Any("error", err))
		return err
	}
	if err := s.notifier.Publish(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "Bookmark written but change notification failed", slog.String("op", op), slog.Any("error", err))
	}
	return nil
}

func (s *ServiceImpl) List(ctx context.Context, userID string) (types.BookmarkSet, error) {
	return s.repo.List(ctx, userID)
}

// RecommendOne picks a single random bookmark, optionally only liked ones.
func (s *ServiceImpl) RecommendOne(ctx context.Context, userID string, likedOnly bool) (*types.Bookmark, error) {
	set, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, ErrNoBookmarks
	}

	pool := make([]types.Place, 0, len(set))
	for _, b := range set.Bookmarks() {
		if likedOnly && !b.Liked {
			continue
		}
		pool = append(pool, b.Place)
	}
	if len(pool) == 0 {
		return nil, ErrNoLikedBookmarks
	}

	res, err := s.picker.Pick(pool, types.FilterCriteria{}, 1)
	if err != nil {
		return nil, err
	}
	picked := set[res.Places[0].ID.String()]
	return &picked, nil
}

// InRadius returns bookmarks within radius meters of center, annotated
// with their distance from it.
func (s *ServiceImpl) InRadius(ctx context.Context, userID string, center types.Coordinate, radius int) ([]types.Bookmark, error) {
	set, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Bookmark, 0, len(set))
	for _, b := range set.Bookmarks() {
		d := geo.Between(center, b.Coordinate)
		if d > radius {
			continue
		}
		b.Distance = &d
		out = append(out, b)
	}
	return out, nil
}
