package client

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/jpillora/backoff"
	"github.com/temoto/alive/v2"

	sk "github.com/Krillle/SignalKKit"
)

// Reconnector implements the caller-side reconnect policy the connection
// itself stays out of: watch for drops and re-dial with expanding backoff.
// Requests are re-enqueued once per outage since the server forgets
// subscriptions across connections.
type Reconnector struct {
	Conn     *StreamConnection
	Subs     *SubscriptionManager
	Host     string
	Port     int
	Requests []sk.SubscriptionRequest
	Backoff  *backoff.Backoff

	life *alive.Alive
}

// NewReconnector wires a reconnect loop for conn against host:port.
func NewReconnector(conn *StreamConnection, subs *SubscriptionManager, host string, port int, requests ...sk.SubscriptionRequest) *Reconnector {
	return &Reconnector{
		Conn:     conn,
		Subs:     subs,
		Host:     host,
		Port:     port,
		Requests: append([]sk.SubscriptionRequest(nil), requests...),
		Backoff:  &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true},
		life:     alive.NewAlive(),
	}
}

// Run keeps the stream connected until ctx is done or Stop is called.
// It performs the initial connect as well.
func (r *Reconnector) Run(ctx context.Context) {
	if !r.life.Add(1) {
		return
	}
	defer r.life.Done()

	events := r.Conn.Subscribe(8)
	defer events.Close()

	enqueued := false
	for {
		if r.Conn.State() == StateDisconnected {
			if !enqueued {
				r.Subs.Enqueue(r.Requests...)
				enqueued = true
			}
			if err := r.Conn.Connect(ctx, r.Host, r.Port); err != nil {
				d := r.Backoff.Duration()
				glog.V(2).Infof("reconnect: dial %s:%d failed: %v, next try in %v", r.Host, r.Port, err, d)
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				case <-r.life.StopChan():
					return
				}
				continue
			}
			r.Backoff.Reset()
			enqueued = false
		}

		// any event is a cue to re-check the state
		select {
		case _, ok := <-events.C():
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		case <-r.life.StopChan():
			return
		}
	}
}

// Stop ends the reconnect loop and waits for it. The connection itself is
// left in whatever state it was in.
func (r *Reconnector) Stop() {
	r.life.Stop()
	r.life.Wait()
}
