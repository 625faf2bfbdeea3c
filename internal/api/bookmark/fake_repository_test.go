package bookmark

import (
	"context"
	"errors"
	"sync"

	"github.com/FACorreiaa/go-eat-today/internal/types"
)

var errStoreDown = errors.New("store unavailable")

// memRepository is an in-memory Repository whose reads and writes can be
// made to fail, and whose writes can block until released.
type memRepository struct {
	mu        sync.Mutex
	data      map[string]types.BookmarkSet
	failNext  int
	failLists int
	gate      chan struct{}
}

func newMemRepository() *memRepository {
	return &memRepository{data: make(map[string]types.BookmarkSet)}
}

func (m *memRepository) failWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// hold makes subsequent writes block until the returned func is called.
func (m *memRepository) hold() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	return func() {
		m.mu.Lock()
		m.gate = nil
		m.mu.Unlock()
		close(gate)
	}
}

func (m *memRepository) beginWrite(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return errStoreDown
	}
	return nil
}

func (m *memRepository) failReads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLists = n
}

func (m *memRepository) List(_ context.Context, userID string) (types.BookmarkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLists > 0 {
		m.failLists--
		return nil, errStoreDown
	}
	return m.data[userID].Clone(), nil
}

func (m *memRepository) Upsert(ctx context.Context, userID string, b types.Bookmark) error {
	if err := m.beginWrite(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[userID] == nil {
		m.data[userID] = make(types.BookmarkSet)
	}
	if old, ok := m.data[userID][b.ID.String()]; ok {
		b.Liked = old.Liked
		b.CreatedAt = old.CreatedAt
	}
	m.data[userID][b.ID.String()] = b
	return nil
}

func (m *memRepository) Delete(ctx context.Context, userID, placeID string) error {
	if err := m.beginWrite(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[userID], placeID)
	return nil
}

func (m *memRepository) Clear(ctx context.Context, userID string) error {
	if err := m.beginWrite(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

func (m *memRepository) SetLiked(ctx context.Context, userID, placeID string, liked bool) error {
	if err := m.beginWrite(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[userID][placeID]
	if !ok {
		return ErrNotFound
	}
	b.Liked = liked
	m.data[userID][placeID] = b
	return nil
}
