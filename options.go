package signalkkit

import "time"

// TokenSource yields the bearer token attached to stream handshakes and REST
// calls. ok is false while no token is held; requests then go out anonymous.
type TokenSource interface {
	Token() (token string, ok bool)
}

// StaticToken implements TokenSource using a pre-specified token value.
type StaticToken struct{ Value string }

func (s StaticToken) Token() (string, bool) { return s.Value, s.Value != "" }

// Values for the subscribe= hint on the stream URL.
const (
	SubscribeNone = "none"
	SubscribeAll  = "all"
)

// Options configures the stream and control-plane clients.
type Options struct {
	// Secure forces wss/https (true) or ws/http (false). Nil falls back to
	// the port heuristic: 443 and 3443 imply TLS.
	Secure *bool

	StreamPath    string // stream endpoint path
	SubscribeHint string // subscribe= query value
	Context       string // context used in outbound control messages

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration

	EventBuffer int // capacity hint for event subscription channels
}

// DefaultOptions gives baseline sensible defaults.
func DefaultOptions() Options {
	return Options{
		StreamPath:       "/signalk/v1/stream",
		SubscribeHint:    SubscribeNone,
		Context:          "vessels.self",
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   15 * time.Second,
		EventBuffer:      16,
	}
}

// WithDefaults fills zero fields so partially specified Options behave.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.StreamPath == "" {
		o.StreamPath = d.StreamPath
	}
	if o.SubscribeHint == "" {
		o.SubscribeHint = d.SubscribeHint
	}
	if o.Context == "" {
		o.Context = d.Context
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = d.EventBuffer
	}
	return o
}
