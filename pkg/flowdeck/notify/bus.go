package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// BusConfig configures a Bus.
type BusConfig struct {
	// BufferSize is the channel buffer per subscription.
	// Default: 64
	BufferSize int

	// OnDrop is called when a slow subscriber misses a notification.
	OnDrop func(n Notification, subscriberID int64)
}

// Bus fans notifications out to subscribers. Publishing never blocks:
// a subscriber with a full buffer misses the notification.
type Bus struct {
	config BusConfig

	mu   sync.RWMutex
	subs map[int64]*Subscription

	nextID atomic.Int64
	closed atomic.Bool
	now    func() time.Time
}

var _ Notifier = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}
	return &Bus{
		config: config,
		subs:   make(map[int64]*Subscription),
		now:    time.Now,
	}
}

// Subscription receives the notifications of one user, or of everyone when
// its user id is empty.
type Subscription struct {
	id     int64
	userID string
	ch     chan Notification
	bus    *Bus
	once   sync.Once
}

// C returns the delivery channel. It is closed on Unsubscribe or when the
// bus closes.
func (s *Subscription) C() <-chan Notification { return s.ch }

// Unsubscribe stops delivery and closes the channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.close()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers a subscriber for userID. Returns nil after Close.
func (b *Bus) Subscribe(userID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil
	}
	sub := &Subscription{
		id:     b.nextID.Add(1),
		userID: userID,
		ch:     make(chan Notification, b.config.BufferSize),
		bus:    b,
	}
	b.subs[sub.id] = sub
	return sub
}

// Notify implements Notifier.
func (b *Bus) Notify(_ context.Context, n Notification) {
	if b.closed.Load() {
		return
	}
	if n.At.IsZero() {
		n.At = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.userID != "" && sub.userID != n.UserID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			if b.config.OnDrop != nil {
				b.config.OnDrop(n, sub.id)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
	return nil
}
