package discovery

import (
	"context"
	"testing"
)

func TestStaticYieldsAllAndCloses(t *testing.T) {
	src := NewStatic(
		Record{Name: "signalk", Type: "_signalk-ws._tcp", Domain: "local.", Host: "boat.local", Port: 3000},
		Record{Name: "signalk-tls", Type: "_signalk-wss._tcp", Domain: "local.", Host: "boat.local", Port: 3443},
	)

	var got []Record
	for r := range src.Records() {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].Host != "boat.local" || got[0].Port != 3000 {
		t.Fatalf("first record = %+v", got[0])
	}
	if got[1].Port != 3443 {
		t.Fatalf("second record = %+v", got[1])
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, open := <-src.Records(); open {
		t.Fatalf("channel must be closed after drain")
	}
}

func TestStaticEmpty(t *testing.T) {
	src := NewStatic()
	if _, open := <-src.Records(); open {
		t.Fatalf("empty source must close immediately")
	}
}

type stalledSource struct{ ch chan Record }

func (s stalledSource) Records() <-chan Record { return s.ch }

func (s stalledSource) Close() error { return nil }

func TestFirst(t *testing.T) {
	src := NewStatic(
		Record{Name: "signalk", Type: "_signalk-ws._tcp", Domain: "local.", Host: "boat.local", Port: 3000},
		Record{Name: "signalk-tls", Type: "_signalk-wss._tcp", Domain: "local.", Host: "boat.local", Port: 3443},
	)
	rec, ok := First(context.Background(), src)
	if !ok || rec.Host != "boat.local" || rec.Port != 3000 {
		t.Fatalf("first = %+v %v", rec, ok)
	}

	if _, ok := First(context.Background(), NewStatic()); ok {
		t.Fatalf("empty source must yield nothing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := First(ctx, stalledSource{ch: make(chan Record)}); ok {
		t.Fatalf("cancelled wait must yield nothing")
	}
}
