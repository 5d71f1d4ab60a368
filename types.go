package signalkkit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ValueKind discriminates the variants of Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMap
)

// Value is the typed payload of one delta update. Exactly one variant is
// meaningful, selected by the kind. Decoding tries the variants in a fixed
// order (bool, int, float, string, map) so numeric strings stay strings.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	m    map[string]float64
}

func BoolValue(b bool) Value              { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value              { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value          { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value          { return Value{kind: KindString, s: s} }
func MapValue(m map[string]float64) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float coerces a numeric reading out of int, float and numeric-string
// values; ok is false for everything else.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

func (v Value) Map() (map[string]float64, bool) { return v.m, v.kind == KindMap }

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{kind: KindNull}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Value{kind: KindBool, b: b}
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*v = Value{kind: KindInt, i: i}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Value{kind: KindFloat, f: f}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value{kind: KindString, s: s}
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err == nil {
		*v = Value{kind: KindMap, m: m}
		return nil
	}
	// Arrays and mixed objects fall outside the union. They decode as
	// invalid rather than failing, so one exotic value cannot reject the
	// whole frame it arrived in.
	*v = Value{kind: KindNull}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindMap:
		return json.Marshal(v.m)
	}
	return []byte("null"), nil
}

// DeltaMessage is one server push: zero or more updates for a context.
type DeltaMessage struct {
	Context string   `json:"context,omitempty"`
	Updates []Update `json:"updates"`
}

// Update groups values sharing an optional update-level path. A value whose
// own path is empty inherits the update-level one.
type Update struct {
	Path   string      `json:"path,omitempty"`
	Values []PathValue `json:"values"`
}

// PathValue carries one value with an optional value-level path.
type PathValue struct {
	Path  string `json:"path,omitempty"`
	Value Value  `json:"value"`
}

// Hello is the greeting frame a server sends when the stream opens.
type Hello struct {
	Name      string   `json:"name,omitempty"`
	Version   string   `json:"version"`
	Self      string   `json:"self,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// Server-side throttling policies for a subscription.
const (
	PolicyInstant = "instant"
	PolicyIdeal   = "ideal"
	PolicyFixed   = "fixed"
)

// SubscriptionRequest names one path the caller wants pushed over the
// stream. Period and MinPeriod are seconds; zero means the server default.
// Two requests are equal when every field matches.
type SubscriptionRequest struct {
	Path      string  `json:"path"`
	Policy    string  `json:"policy,omitempty"`
	Period    float64 `json:"period,omitempty"`
	MinPeriod float64 `json:"minPeriod,omitempty"`
}

// PathRef holds both addressing forms of one telemetry path.
type PathRef struct {
	Absolute string
	Relative string
}

type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventHello        EventKind = "hello"
	EventUpdate       EventKind = "update"
)

// Event is a notification from the stream connection. Source names the
// endpoint the event relates to. Payload holds a *Hello for EventHello, a
// ValueChange for EventUpdate and the disconnect reason string for
// EventDisconnected.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
	Source     string
	Payload    interface{}
}

// ValueChange reports one store write decoded from a delta.
type ValueChange struct {
	Context string
	Path    PathRef
	Value   Value
}

type EventSubscription interface {
	C() <-chan Event
	Close() error
}
