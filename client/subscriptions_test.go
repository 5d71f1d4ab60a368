package client

import (
	"encoding/json"
	"errors"
	"testing"

	sk "github.com/Krillle/SignalKKit"
)

type fakeSender struct {
	connected bool
	sendErr   error
	frames    [][]byte
}

func (f *fakeSender) Connected() bool { return f.connected }

func (f *fakeSender) Send(payload []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, payload)
	return nil
}

type subscribeFrame struct {
	Context   string                   `json:"context"`
	Subscribe []sk.SubscriptionRequest `json:"subscribe"`
}

type unsubscribeFrame struct {
	Context     string              `json:"context"`
	Unsubscribe []map[string]string `json:"unsubscribe"`
}

func TestFlushWithoutConnectionKeepsQueue(t *testing.T) {
	m := NewSubscriptionManager("vessels.self")
	m.Enqueue(sk.SubscriptionRequest{Path: "navigation.position", Policy: sk.PolicyInstant})

	if err := m.FlushIfConnected(nil); err != nil {
		t.Fatalf("flush with nil sender: %v", err)
	}
	if err := m.FlushIfConnected(&fakeSender{connected: false}); err != nil {
		t.Fatalf("flush while disconnected: %v", err)
	}
	if got := len(m.Pending()); got != 1 {
		t.Fatalf("pending len = %d, want 1", got)
	}
}

func TestFlushSendsWholeQueueOnce(t *testing.T) {
	m := NewSubscriptionManager("vessels.self")
	m.Enqueue(sk.SubscriptionRequest{Path: "navigation.speedOverGround", Policy: sk.PolicyInstant})
	m.Enqueue(sk.SubscriptionRequest{Path: "navigation.speedOverGround", Policy: sk.PolicyInstant})
	m.Enqueue(sk.SubscriptionRequest{Path: "environment.wind.speedApparent", Policy: sk.PolicyIdeal, Period: 1})

	s := &fakeSender{connected: true}
	if err := m.FlushIfConnected(s); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(s.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(s.frames))
	}

	var frame subscribeFrame
	if err := json.Unmarshal(s.frames[0], &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Context != "vessels.self" {
		t.Fatalf("context = %q", frame.Context)
	}
	if len(frame.Subscribe) != 3 {
		t.Fatalf("subscribe entries = %d, want 3", len(frame.Subscribe))
	}
	if frame.Subscribe[0].Path != "navigation.speedOverGround" || frame.Subscribe[1].Path != "navigation.speedOverGround" {
		t.Fatalf("duplicate enqueue must be sent twice: %+v", frame.Subscribe)
	}
	if got := len(m.Pending()); got != 0 {
		t.Fatalf("pending len after flush = %d, want 0", got)
	}

	// nothing queued, nothing sent
	if err := m.FlushIfConnected(s); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(s.frames) != 1 {
		t.Fatalf("frames after empty flush = %d, want 1", len(s.frames))
	}
}

func TestFlushSendFailureKeepsQueue(t *testing.T) {
	m := NewSubscriptionManager("vessels.self")
	m.Enqueue(sk.SubscriptionRequest{Path: "navigation.position", Policy: sk.PolicyFixed, Period: 5, MinPeriod: 1})

	s := &fakeSender{connected: true, sendErr: errors.New("broken pipe")}
	if err := m.FlushIfConnected(s); err == nil {
		t.Fatalf("expected send error")
	}
	if got := len(m.Pending()); got != 1 {
		t.Fatalf("pending len after failed flush = %d, want 1", got)
	}

	s.sendErr = nil
	if err := m.FlushIfConnected(s); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if len(s.frames) != 1 || len(m.Pending()) != 0 {
		t.Fatalf("retry flush did not drain queue: frames=%d pending=%d", len(s.frames), len(m.Pending()))
	}
}

func TestUnsubscribeNeedsConnection(t *testing.T) {
	m := NewSubscriptionManager("vessels.self")
	m.Enqueue(sk.SubscriptionRequest{Path: "navigation.position"})

	err := m.Unsubscribe(&fakeSender{connected: false}, "navigation.position")
	if !errors.Is(err, sk.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := m.Unsubscribe(nil, "navigation.position"); !errors.Is(err, sk.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected for nil sender, got %v", err)
	}

	s := &fakeSender{connected: true}
	if err := m.Unsubscribe(s); err == nil {
		t.Fatalf("expected error for empty path list")
	}

	if err := m.Unsubscribe(s, "navigation.position", "navigation.speedOverGround"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	var frame unsubscribeFrame
	if err := json.Unmarshal(s.frames[0], &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if len(frame.Unsubscribe) != 2 || frame.Unsubscribe[0]["path"] != "navigation.position" {
		t.Fatalf("unexpected unsubscribe frame: %s", s.frames[0])
	}

	// pending queue holds requests never flushed; unsubscribe leaves it alone
	if got := len(m.Pending()); got != 1 {
		t.Fatalf("pending len after unsubscribe = %d, want 1", got)
	}
}
