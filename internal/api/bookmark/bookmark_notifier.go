package bookmark

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier fans out "bookmarks changed" signals per user. Signals carry no
// payload; subscribers re-read the store. Bursts may be coalesced.
type Notifier interface {
	Publish(ctx context.Context, userID string) error
	Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error)
}

func channelName(userID string) string {
	return "bookmarks:" + userID
}

// signal does a non-blocking send; a pending signal already covers this one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier uses Redis Pub/Sub so every API instance sees writes made
// through any other instance.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, userID string) error {
	if err := n.client.Publish(ctx, channelName(userID), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish bookmark change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	ps := n.client.Subscribe(ctx, channelName(userID))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to bookmark changes: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				n.logger.Debug("Error closing bookmark subscription", slog.String("user_id", userID), slog.Any("error", err))
			}
		})
	}
	return out, cancel, nil
}

var _ Notifier = (*LocalNotifier)(nil)

// LocalNotifier is an in-process broker for single instance deployments.
type LocalNotifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]chan struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[userID] {
		signal(ch)
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, userID string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[int]chan struct{})
	}
	n.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[userID], id)
			if len(n.subs[userID]) == 0 {
				delete(n.subs, userID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
