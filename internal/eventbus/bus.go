// Package eventbus fans generation progress events out to live subscribers, scoped by user.
//
// Nothing is buffered for absent subscribers and nothing is replayed: a
// subscriber only sees events published while it is registered.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/painting-generator/internal/events"
)

// DefaultBufferSize is the per-subscription queue length.
const DefaultBufferSize = 64

// ConnectedMessage is carried by the synthetic event every new subscriber receives.
const ConnectedMessage = "SSE connection established"

// Bus is a per-user broadcast registry. The zero value is not usable; call New.
type Bus struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the queue length of new subscriptions.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New creates an empty Bus.
func New(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		users:  make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: DefaultBufferSize,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is one observer's handle on the bus.
type Subscription struct {
	userID uuid.UUID
	ch     chan events.Event

	mu     sync.Mutex
	closed bool
}

// UserID returns the user the subscription listens to.
func (s *Subscription) UserID() uuid.UUID { return s.userID }

// Events returns the receive side of the subscription. It is closed by Unsubscribe.
func (s *Subscription) Events() <-chan events.Event { return s.ch }

// deliver performs a non-blocking send and reports whether the event was queued.
func (s *Subscription) deliver(e events.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe registers a new observer for userID. The returned subscription
// already holds a Connected event.
func (b *Bus) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan events.Event, b.buffer),
	}
	sub.deliver(events.Connected{Message: ConnectedMessage})

	b.mu.Lock()
	subs, ok := b.users[userID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.users[userID] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	b.logger.Debug("subscriber registered", zap.String("user_id", userID.String()))
	return sub
}

// Unsubscribe removes sub and closes its channel. Users left without
// subscribers are pruned. Calling it more than once is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if subs, ok := b.users[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.users, sub.userID)
		}
	}
	b.mu.Unlock()

	sub.close()
	b.logger.Debug("subscriber removed", zap.String("user_id", sub.userID.String()))
}

// Publish delivers e to every subscription registered for userID at the time
// of the call. It never blocks: a subscription whose queue is full or which
// closed concurrently misses the event, and the miss is logged.
func (b *Bus) Publish(userID uuid.UUID, e events.Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.users[userID]))
	for sub := range b.users[userID] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.deliver(e) {
			b.logger.Warn("dropped event for subscriber",
				zap.String("user_id", userID.String()),
				zap.String("event", string(e.Type())))
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Bus) Subscribers(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users[userID])
}

// Users returns the number of users with at least one subscription.
func (b *Bus) Users() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.users)
}
