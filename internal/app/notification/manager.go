// Package notification provides the notification manager for broadcasting
// playback events to stream subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/app/playback"
)

// DefaultSendTimeout bounds a single subscriber send.
const DefaultSendTimeout = 500 * time.Millisecond

// Notification is the wire form of a playback event.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Index      int       `json:"index"`
	ClipID     string    `json:"clip_id,omitempty"`
	Command    string    `json:"command,omitempty"`
	Phase      string    `json:"phase"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// FromEvent converts a playback event.
func FromEvent(e playback.Event) *Notification {
	n := &Notification{
		Type:      e.Type.String(),
		SessionID: e.SessionID,
		Index:     e.Index,
		ClipID:    e.ClipID,
		Command:   e.Command,
		Phase:     e.Phase.String(),
		At:        e.At,
	}
	if e.Err != nil {
		n.Error = e.Err.Error()
	}
	return n
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
	}
}

// SetSendTimeout changes the per subscriber send timeout.
func (m *Manager) SetSendTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendTimeout = d
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s subscribers=%d", id, len(m.subscriptions))
	return id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a notification to all subscribers and returns the
// sequence number assigned to it. Sends run in parallel, each bounded by
// the send timeout. Subscribers whose send fails are removed.
func (m *Manager) Broadcast(notification *Notification) uint64 {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	currentSequenceNo := m.sequenceNo
	m.sequenceNoMu.Unlock()

	notification.SequenceNo = currentSequenceNo

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	timeout := m.sendTimeout
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Err(err).Msgf("notification: send failed, unsubscribing: id=%s", s.id)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: id=%s seq=%d", s.id, currentSequenceNo)
			}
		}(sub)
	}

	wg.Wait()
	return currentSequenceNo
}

// Pump broadcasts every event from events until the channel closes or ctx
// is cancelled.
func (m *Manager) Pump(ctx context.Context, events <-chan playback.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Broadcast(FromEvent(e))
		}
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
