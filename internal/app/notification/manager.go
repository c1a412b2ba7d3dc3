// Package notification provides the notification manager for broadcasting player events.
package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// SendTimeout bounds how long one subscriber may block a broadcast.
	SendTimeout = 500 * time.Millisecond
	// MaxSendFailures consecutive failed or timed out sends evict a subscriber.
	MaxSendFailures = 3
)

// ErrSendTimeout is returned when a subscriber does not accept a notification in time.
var ErrSendTimeout = errors.New("notification send timed out")

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*structpb.Struct) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id       string
	stream   Stream
	failures atomic.Int32
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
// A non-nil initial builds a first notification that is sent to stream before
// the stream can receive any broadcast. initial runs under the subscription lock,
// so every state change after it reaches the stream as a broadcast.
func (m *Manager) Subscribe(stream Stream, initial func() (*structpb.Struct, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if initial != nil {
		n, err := initial()
		if err != nil {
			return "", errors.Wrap(err, "failed to build initial notification")
		}
		if err := sendWithTimeout(stream, n); err != nil {
			return "", errors.Wrap(err, "failed to send initial notification")
		}
	}

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s total=%d", id, len(m.subscriptions))
	return id, nil
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// nextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) nextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps the notification with a sequence number and sends it to all subscribers.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
func (m *Manager) Broadcast(notification *structpb.Struct) {
	if notification.Fields == nil {
		notification.Fields = make(map[string]*structpb.Value)
	}
	notification.Fields[FieldSequenceNo] = structpb.NewNumberValue(float64(m.nextSequenceNo()))

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	// Send to each subscriber in parallel with timeout
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			err := sendWithTimeout(s.stream, notification)
			if err == nil {
				s.failures.Store(0)
				return
			}
			zlog.Debug().Msgf("notification: send failed: id=%s err=%v", s.id, err)
			if s.failures.Add(1) >= MaxSendFailures {
				m.evict(s)
			}
		}(sub)
	}

	// Wait for all sends to complete or timeout
	wg.Wait()
}

// sendWithTimeout sends n, giving up after SendTimeout.
func sendWithTimeout(stream Stream, n *structpb.Struct) error {
	ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- stream.Send(n)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrSendTimeout
	}
}

// evict drops a subscription that keeps failing, unless it was replaced meanwhile.
func (m *Manager) evict(s *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.subscriptions[s.id]; ok && cur == s {
		delete(m.subscriptions, s.id)
		zlog.Info().Msgf("notification: subscriber evicted: id=%s failures=%d", s.id, s.failures.Load())
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
