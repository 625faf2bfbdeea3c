package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-eat-today/app/observability/metrics"
	"github.com/FACorreiaa/go-eat-today/internal/api/bookmark"
	"github.com/FACorreiaa/go-eat-today/internal/api/poi"
	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service drives the explore screen flows on a session.
type Service interface {
	// Open returns the session for id, creating one when id is empty or
	// unknown, and binds it to userID. An empty userID signs the session out.
	Open(ctx context.Context, id, userID string) (*Session, error)
	Locate(ctx context.Context, s *Session, fix types.LocationFix) error
	SelectCenter(ctx context.Context, s *Session, center types.Coordinate) error
	UpdateSettings(ctx context.Context, s *Session, settings Settings) error
	SetMode(ctx context.Context, s *Session, bookmarks bool)
	Spin(ctx context.Context, s *Session) error
	Toggle(ctx context.Context, s *Session, placeID string) (types.ToggleResult, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	search    poi.Service
	picker    *recommend.Picker
	bookmarks bookmark.Service
	sessions  *cache.Cache
	closing   sync.WaitGroup
}

// NewServiceImpl keeps sessions for idleTTL after their last use. An expired
// session is closed in the background, which ends its bookmark subscription
// once its pending writes finish.
func NewServiceImpl(search poi.Service, picker *recommend.Picker, bookmarks bookmark.Service, idleTTL time.Duration, logger *slog.Logger) *ServiceImpl {
	svc := &ServiceImpl{
		logger:    logger,
		search:    search,
		picker:    picker,
		bookmarks: bookmarks,
		sessions:  cache.New(idleTTL, idleTTL/2),
	}
	svc.sessions.OnEvicted(func(id string, v any) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		metrics.Get().SessionsActive.Add(context.Background(), -1)
		logger.Debug("Session evicted", slog.String("session_id", id))
		svc.closing.Add(1)
		go func() {
			defer svc.closing.Done()
			sess.Close()
		}()
	})
	return svc
}

func (s *ServiceImpl) Open(ctx context.Context, id, userID string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	var sess *Session
	if v, ok := s.sessions.Get(id); ok {
		sess = v.(*Session)
	} else {
		fresh := New(id, bookmark.NewSync(s.bookmarks, s.logger))
		if err := s.sessions.Add(id, fresh, cache.DefaultExpiration); err == nil {
			sess = fresh
			metrics.Get().SessionsActive.Add(ctx, 1)
			s.logger.DebugContext(ctx, "Session created", slog.String("session_id", id))
		} else if v, ok := s.sessions.Get(id); ok {
			// Lost a race with a concurrent request for the same id.
			sess = v.(*Session)
		} else {
			return nil, fmt.Errorf("failed to open session %s: %w", id, err)
		}
	}
	// go-cache does not extend expiry on reads.
	s.sessions.Set(id, sess, cache.DefaultExpiration)

	previous := sess.sync.UserID()
	if err := sess.sync.SetUser(ctx, userID); err != nil {
		// The session stays usable; bookmarks load on a later request.
		s.logger.WarnContext(ctx, "Failed to bind session identity",
			slog.String("session_id", id), slog.Any("error", err))
	}
	if previous != userID {
		sess.resetBookmarkSelection()
	}
	return sess, nil
}

// refresh runs a nearby search around the session's center. A result that
// arrives after a newer search began is discarded.
func (s *ServiceImpl) refresh(ctx context.Context, sess *Session) error {
	token := sess.BeginSearch()
	center, radius := sess.searchArea()

	result, err := s.search.FetchNearby(ctx, center, radius)
	if err != nil {
		if ctx.Err() == nil {
			sess.addNotice(types.NoticeSearchError)
		}
		return fmt.Errorf("nearby search failed: %w", err)
	}
	if !sess.ApplySearch(token, result) {
		s.logger.DebugContext(ctx, "Discarded stale search result",
			slog.String("session_id", sess.ID), slog.Uint64("token", token))
	}
	return nil
}

// Locate applies a device geolocation result. A denied permission only
// queues a notice.
func (s *ServiceImpl) Locate(ctx context.Context, sess *Session, fix types.LocationFix) error {
	ctx, span := otel.Tracer("SessionService").Start(ctx, "Locate")
	defer span.End()

	if !fix.Granted {
		sess.addNotice(types.NoticeLocationPermission)
		span.SetStatus(codes.Ok, "location permission denied")
		return nil
	}
	sess.locate(fix.Coordinate)
	if err := s.refresh(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby search failed")
		return err
	}
	return nil
}

func (s *ServiceImpl) SelectCenter(ctx context.Context, sess *Session, center types.Coordinate) error {
	ctx, span := otel.Tracer("SessionService").Start(ctx, "SelectCenter")
	defer span.End()

	sess.selectCenter(center)
	if err := s.refresh(ctx, sess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby search failed")
		return err
	}
	return nil
}

func (s *ServiceImpl) UpdateSettings(_ context.Context, sess *Session, settings Settings) error {
	if settings.Radius <= 0 || settings.Radius > poi.MaxRadius {
		return fmt.Errorf("radius must be between 1 and %d", poi.MaxRadius)
	}
	if settings.Count < 0 {
		return errors.New("count must not be negative")
	}
	sess.updateSettings(settings)
	return nil
}

func (s *ServiceImpl) SetMode(_ context.Context, sess *Session, bookmarks bool) {
	sess.setMode(bookmarks)
}

// Spin picks restaurants for the current mode. Bookmark mode draws from the
// signed-in user's bookmarks; general mode runs a fresh nearby search around
// the map center.
func (s *ServiceImpl) Spin(ctx context.Context, sess *Session) error {
	ctx, span := otel.Tracer("SessionService").Start(ctx, "Spin")
	defer span.End()

	token := sess.beginSpin()
	state := sess.spinState()
	criteria := state.settings.Criteria()

	span.SetAttributes(attribute.Bool("spin.bookmarks", state.bookmarkMode))

	var pool []types.Place
	source := "general"
	if state.bookmarkMode {
		if sess.sync.UserID() == "" {
			sess.addNotice(types.NoticeLoginRequired)
			return nil
		}
		source = "bookmarks"
		pool = sess.sync.Snapshot().Places()
		if len(pool) == 0 {
			sess.addNotice(types.NoticeNoBookmarks)
			return nil
		}
	} else {
		result, err := s.search.FetchNearby(ctx, state.center, state.settings.Radius)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "nearby search failed")
			return fmt.Errorf("nearby search failed: %w", err)
		}
		pool = result.Places
		if len(pool) == 0 {
			sess.addNotice(types.NoticeSearchFirst)
			return nil
		}
	}

	res, err := s.picker.Pick(pool, criteria, state.settings.Count)
	if err != nil {
		span.RecordError(err)
		return err
	}
	recommend.RecordPick(ctx, res, source)

	if !sess.applySpin(token, state.bookmarkMode, res) {
		s.logger.DebugContext(ctx, "Discarded stale spin", slog.String("session_id", sess.ID))
	}
	return nil
}

// Close evicts every session and waits until each has flushed its pending
// bookmark writes and ended its subscription.
func (s *ServiceImpl) Close() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
	s.closing.Wait()
}

// Toggle flips the bookmark of a place the session knows about.
func (s *ServiceImpl) Toggle(ctx context.Context, sess *Session, placeID string) (types.ToggleResult, error) {
	place, ok := sess.findPlace(placeID)
	if !ok {
		return types.ToggleResult{PlaceID: placeID}, ErrPlaceNotFound
	}
	res, err := sess.sync.Toggle(ctx, place)
	if err != nil {
		return res, err
	}
	sess.resetBookmarkSelection()
	return res, nil
}
