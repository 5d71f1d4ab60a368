package client

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/store"
	"github.com/Krillle/SignalKKit/wire"
)

// ConnState labels the stream lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// StreamConnection owns one duplex stream to a server: it dials, decodes
// inbound frames into the value store and flushes queued subscriptions when
// the link comes up. Reconnecting after a drop is the caller's policy, not
// the connection's; Reconnector implements one such policy.
type StreamConnection struct {
	opts   sk.Options
	subs   *SubscriptionManager
	values *store.Store
	tokens sk.TokenSource
	dialer *websocket.Dialer

	events broadcaster

	mu    sync.RWMutex
	state ConnState
	conn  *websocket.Conn
	life  *alive.Alive
	host  string
	port  int
	url   string
	hello *sk.Hello

	writeMu sync.Mutex

	lastRecv atomic_clock.Clock
}

// NewStreamConnection wires a connection to its collaborators. tokens may
// be nil; the stream then dials without credentials.
func NewStreamConnection(opts sk.Options, subs *SubscriptionManager, values *store.Store, tokens sk.TokenSource) *StreamConnection {
	opts = opts.WithDefaults()
	return &StreamConnection{
		opts:   opts,
		subs:   subs,
		values: values,
		tokens: tokens,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
	}
}

// StreamURL computes the websocket endpoint for host:port under the
// configured options.
func (c *StreamConnection) StreamURL(host string, port int) (string, error) {
	if host == "" {
		return "", sk.ErrNoServerConfigured
	}
	scheme := "ws"
	if c.secure(port) {
		scheme = "wss"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     c.opts.StreamPath,
		RawQuery: "subscribe=" + url.QueryEscape(c.opts.SubscribeHint),
	}
	return u.String(), nil
}

func (c *StreamConnection) secure(port int) bool {
	if c.opts.Secure != nil {
		return *c.opts.Secure
	}
	return port == 443 || port == 3443
}

// Connect dials host:port, starts the read loop and flushes any queued
// subscriptions. An existing connection is replaced.
func (c *StreamConnection) Connect(ctx context.Context, host string, port int) error {
	endpoint, err := c.StreamURL(host, port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	header := http.Header{}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(); ok {
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		if resp != nil {
			return &sk.HTTPError{StatusCode: resp.StatusCode}
		}
		return err
	}

	life := alive.NewAlive()
	c.mu.Lock()
	old, oldLife := c.conn, c.life
	c.conn, c.life = conn, life
	c.state = StateConnected
	c.host, c.port, c.url = host, port, endpoint
	c.hello = nil
	c.mu.Unlock()
	if old != nil {
		oldLife.Stop()
		_ = old.Close()
	}
	c.lastRecv.SetNow()

	if err := c.subs.FlushIfConnected(c); err != nil {
		glog.V(2).Infof("stream: subscribe flush on connect: %v", err)
	}
	c.events.publish(sk.Event{Kind: sk.EventConnected, OccurredAt: time.Now(), Source: endpoint})

	life.Add(1)
	go c.readLoop(conn, life)
	return nil
}

// Disconnect closes the stream, clears the connection metadata and waits
// for the read loop to exit. No-op when already disconnected.
func (c *StreamConnection) Disconnect() {
	c.mu.Lock()
	conn, life := c.conn, c.life
	endpoint := c.url
	c.conn, c.life = nil, nil
	c.state = StateDisconnected
	c.host, c.port, c.url = "", 0, ""
	c.hello = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	life.Stop()
	_ = conn.Close()
	life.Wait()
	c.events.publish(sk.Event{Kind: sk.EventDisconnected, OccurredAt: time.Now(), Source: endpoint, Payload: "closed by caller"})
}

// Send writes one text frame. The transport allows a single writer at a
// time, so sends serialize on a write lock.
func (c *StreamConnection) Send(payload []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return sk.ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *StreamConnection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected
}

// State reports the current lifecycle state.
func (c *StreamConnection) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Endpoint reports host, port and URL of the active connection; zero values
// when disconnected.
func (c *StreamConnection) Endpoint() (host string, port int, endpoint string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host, c.port, c.url
}

// Hello reports the greeting received on the current connection, nil before
// one arrives.
func (c *StreamConnection) Hello() *sk.Hello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// SinceLastReceived reports how long ago the last frame arrived; zero when
// nothing was ever received.
func (c *StreamConnection) SinceLastReceived() time.Duration {
	if c.lastRecv.IsZero() {
		return 0
	}
	return atomic_clock.Since(&c.lastRecv)
}

// Subscribe returns an event subscription fed by this connection. Events
// are dropped, not queued, when the subscriber falls behind. buffer <= 0
// uses the configured default.
func (c *StreamConnection) Subscribe(buffer int) sk.EventSubscription {
	if buffer <= 0 {
		buffer = c.opts.EventBuffer
	}
	return c.events.subscribe(buffer)
}

func (c *StreamConnection) readLoop(conn *websocket.Conn, life *alive.Alive) {
	defer life.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			life.Stop()
			c.teardown(conn, err)
			return
		}
		c.lastRecv.SetNow()
		c.handleFrame(data)
	}
}

// teardown clears connection state after a transport failure. It only acts
// when conn is still the active connection; a caller-initiated Disconnect
// or replacement Connect has already cleaned up otherwise.
func (c *StreamConnection) teardown(conn *websocket.Conn, reason error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	endpoint := c.url
	c.conn, c.life = nil, nil
	c.state = StateDisconnected
	c.host, c.port, c.url = "", 0, ""
	c.hello = nil
	c.mu.Unlock()
	_ = conn.Close()
	c.events.publish(sk.Event{Kind: sk.EventDisconnected, OccurredAt: time.Now(), Source: endpoint, Payload: reason.Error()})
}

func (c *StreamConnection) handleFrame(data []byte) {
	if delta, err := wire.ParseDelta(data); err == nil {
		c.applyDelta(delta)
		return
	}
	if hello, err := wire.ParseHello(data); err == nil {
		c.mu.Lock()
		c.hello = hello
		endpoint := c.url
		c.mu.Unlock()
		c.events.publish(sk.Event{Kind: sk.EventHello, OccurredAt: time.Now(), Source: endpoint, Payload: hello})
		return
	}
	// anything else is dropped; one bad frame must not end the session
	glog.V(2).Infof("stream: dropped undecodable frame len=%d", len(data))
}

func (c *StreamConnection) applyDelta(d *sk.DeltaMessage) {
	c.mu.RLock()
	endpoint := c.url
	c.mu.RUnlock()
	for _, u := range d.Updates {
		for _, pv := range u.Values {
			// null and out-of-union values never reach the store
			if pv.Value.Kind() == sk.KindNull {
				continue
			}
			ref, ok := sk.ResolvePath(d.Context, u.Path, pv.Path)
			if !ok {
				continue
			}
			c.values.Put(ref, pv.Value)
			c.events.publish(sk.Event{
				Kind:       sk.EventUpdate,
				OccurredAt: time.Now(),
				Source:     endpoint,
				Payload:    sk.ValueChange{Context: d.Context, Path: ref, Value: pv.Value},
			})
		}
	}
}
