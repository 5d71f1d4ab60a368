package client

import (
	"sync"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/wire"
)

// Sender is the outbound half of a stream connection.
// *StreamConnection implements it.
type Sender interface {
	Connected() bool
	Send(payload []byte) error
}

// SubscriptionManager queues subscription requests until a connection is
// available to flush them to. The server does not retain subscriptions
// across connections, so callers re-enqueue after a reconnect.
type SubscriptionManager struct {
	context string

	mu      sync.Mutex
	pending []sk.SubscriptionRequest
}

func NewSubscriptionManager(context string) *SubscriptionManager {
	return &SubscriptionManager{context: context}
}

// Enqueue appends requests to the pending queue. Duplicates are kept; the
// server treats repeated subscribes as idempotent.
func (m *SubscriptionManager) Enqueue(requests ...sk.SubscriptionRequest) {
	if len(requests) == 0 {
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, requests...)
	m.mu.Unlock()
}

// Pending returns a copy of the queued requests.
func (m *SubscriptionManager) Pending() []sk.SubscriptionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sk.SubscriptionRequest(nil), m.pending...)
}

// FlushIfConnected sends the whole pending queue as one subscribe message
// and empties it. Without an active connection this is a no-op and the
// queue is kept. A failed send also keeps the queue for the next flush.
func (m *SubscriptionManager) FlushIfConnected(conn Sender) error {
	if conn == nil || !conn.Connected() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	payload, err := wire.BuildSubscribe(m.context, m.pending)
	if err != nil {
		return err
	}
	if err := conn.Send(payload); err != nil {
		return err
	}
	m.pending = nil
	return nil
}

// Unsubscribe tells the server to stop pushing the given paths. It needs an
// active connection and at least one path. The pending subscribe queue is
// left untouched: entries never flushed are not active on the server.
func (m *SubscriptionManager) Unsubscribe(conn Sender, paths ...string) error {
	if conn == nil || !conn.Connected() {
		return sk.ErrNotConnected
	}
	payload, err := wire.BuildUnsubscribe(m.context, paths)
	if err != nil {
		return err
	}
	return conn.Send(payload)
}
