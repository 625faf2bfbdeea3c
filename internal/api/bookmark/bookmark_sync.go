package bookmark

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var ErrLoginRequired = errors.New("login required")

const commandTimeout = 10 * time.Second

type pendingOp struct {
	version uint64
	add     bool
	place   types.Bookmark
}

type command struct {
	ctx    context.Context
	gen    uint64
	userID string
	op     pendingOp
	place  types.Place
	prev   types.Bookmark
}

// Sync keeps one client's view of its bookmark set. Toggles apply locally
// right away and the store writes run in the background, in toggle order. A
// failed write is compensated locally unless a newer toggle of the same place
// superseded it.
type Sync struct {
	svc    Service
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	userID      string
	gen         uint64
	subscribed  bool
	set         types.BookmarkSet
	pending     map[string]pendingOp
	versions    map[string]uint64
	notices     []types.Notice
	unsubscribe func()

	qmu      sync.Mutex
	queue    []command
	draining bool
	wg       sync.WaitGroup
}

func NewSync(svc Service, logger *slog.Logger) *Sync {
	return &Sync{
		svc:      svc,
		logger:   logger,
		now:      time.Now,
		set:      make(types.BookmarkSet),
		pending:  make(map[string]pendingOp),
		versions: make(map[string]uint64),
	}
}

// SetUser binds the sync to userID. A changed identity tears down the old
// subscription and clears the set; an empty id is a sign-out. Binding the
// same user again retries a subscription that previously failed.
func (s *Sync) SetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.userID == userID && (userID == "" || s.subscribed) {
		s.mu.Unlock()
		return nil
	}
	old := s.unsubscribe
	s.unsubscribe = nil
	s.gen++
	gen := s.gen
	s.userID = userID
	s.subscribed = userID != ""
	s.set = make(types.BookmarkSet)
	s.pending = make(map[string]pendingOp)
	s.mu.Unlock()

	if old != nil {
		old()
	}
	if userID == "" {
		return nil
	}

	// The subscription outlives the request that triggered it.
	subCtx := context.WithoutCancel(ctx)
	unsubscribe, err := s.svc.Subscribe(subCtx, userID, func(set types.BookmarkSet) {
		s.applyPush(gen, set)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Bookmark subscription failed", slog.String("user_id", userID), slog.Any("error", err))
		s.mu.Lock()
		if s.gen == gen {
			s.subscribed = false
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	return nil
}

// applyPush replaces the local set with the store's, then re-applies toggles
// whose writes are still in flight.
func (s *Sync) applyPush(gen uint64, set types.BookmarkSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	next := set.Clone()
	for id, op := range s.pending {
		if op.add {
			if _, ok := next[id]; !ok {
				next[id] = op.place
			}
		} else {
			delete(next, id)
		}
	}
	s.set = next
}

// Toggle flips membership of place in the set.
func (s *Sync) Toggle(ctx context.Context, place types.Place) (types.ToggleResult, error) {
	id := place.ID.String()
	res := types.ToggleResult{PlaceID: id}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		res.Bookmarked = s.Has(id)
		res.Notice = types.NoticeLoginRequired.Ptr()
		return res, ErrLoginRequired
	}
	if id == "" {
		s.mu.Unlock()
		return res, ErrInvalidPlace
	}

	s.versions[id]++
	version := s.versions[id]
	prev, had := s.set[id]
	op := pendingOp{version: version, add: !had}
	if had {
		delete(s.set, id)
	} else {
		now := s.now().UTC()
		op.place = types.Bookmark{Place: place, CreatedAt: now, UpdatedAt: now}
		op.place.Distance = nil
		s.set[id] = op.place
	}
	s.pending[id] = op
	s.enqueue(command{
		ctx:    context.WithoutCancel(ctx),
		gen:    s.gen,
		userID: s.userID,
		op:     op,
		place:  place,
		prev:   prev,
	})
	s.mu.Unlock()

	res.Bookmarked = op.add
	return res, nil
}

func (s *Sync) enqueue(c command) {
	s.wg.Add(1)
	s.qmu.Lock()
	s.queue = append(s.queue, c)
	start := !s.draining
	s.draining = true
	s.qmu.Unlock()
	if start {
		go s.drain()
	}
}

func (s *Sync) drain() {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.qmu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		s.run(c)
	}
}

func (s *Sync) run(c command) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	gen, userID, op, place, prev := c.gen, c.userID, c.op, c.place, c.prev
	id := place.ID.String()
	var err error
	if op.add {
		_, err = s.svc.Add(ctx, userID, place)
	} else {
		err = s.svc.Remove(ctx, userID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	current := s.versions[id] == op.version
	if current {
		delete(s.pending, id)
	}
	if err == nil {
		return
	}

	s.logger.WarnContext(ctx, "Bookmark write failed", slog.String("user_id", userID), slog.String("place_id", id), slog.Bool("add", op.add), slog.Any("error", err))
	s.notices = append(s.notices, types.NoticeBookmarkWriteFailed)
	if !current {
		return
	}
	// Compensate with the inverse of the failed command.
	if op.add {
		delete(s.set, id)
	} else {
		s.set[id] = prev
	}
}

// UserID returns the bound identity, empty when signed out.
func (s *Sync) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Sync) Snapshot() types.BookmarkSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone()
}

func (s *Sync) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Has(id)
}

// Notices drains the queued asynchronous notices.
func (s *Sync) Notices() []types.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Wait blocks until every in-flight write has completed.
func (s *Sync) Wait() {
	s.wg.Wait()
}

// Close signs out and waits for pending writes.
func (s *Sync) Close() {
	_ = s.SetUser(context.Background(), "")
	s.Wait()
}
