package client

import (
	"sync"

	sk "github.com/Krillle/SignalKKit"
)

type eventSub struct {
	b         *broadcaster
	ch        chan sk.Event
	closeOnce sync.Once
}

func (e *eventSub) C() <-chan sk.Event { return e.ch }

func (e *eventSub) Close() error {
	e.b.remove(e)
	e.closeOnce.Do(func() { close(e.ch) })
	return nil
}

// broadcaster fans events out to subscribers without ever blocking the
// stream read loop. Sends happen under the read lock so a listener channel
// cannot be closed mid-send.
type broadcaster struct {
	mu        sync.RWMutex
	listeners []*eventSub
}

func (b *broadcaster) subscribe(buffer int) sk.EventSubscription {
	es := &eventSub{b: b, ch: make(chan sk.Event, buffer)}
	b.mu.Lock()
	b.listeners = append(b.listeners, es)
	b.mu.Unlock()
	return es
}

func (b *broadcaster) publish(evt sk.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, es := range b.listeners {
		select {
		case es.ch <- evt:
		default: /* drop if slow */
		}
	}
}

func (b *broadcaster) remove(es *eventSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == es {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}
