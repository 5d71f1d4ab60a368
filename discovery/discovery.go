// Package discovery defines the service-record feed the connection layer
// picks servers from. Network discovery itself (mDNS) stays outside; this
// package carries the feed contract and a fixed-list source.
package discovery

import "context"

// Record describes one advertised stream endpoint.
type Record struct {
	Name   string // instance name, e.g. "signalk"
	Type   string // service type, e.g. "_signalk-ws._tcp"
	Domain string // e.g. "local."
	Host   string
	Port   int
}

// Source emits candidate endpoints as they appear. The channel closes when
// the source is exhausted or closed.
type Source interface {
	Records() <-chan Record
	Close() error
}

// Static serves a fixed record list, useful when the server address is
// already known or configured by hand.
type Static struct {
	ch chan Record
}

// NewStatic builds a source that yields the given records and then closes.
func NewStatic(records ...Record) *Static {
	ch := make(chan Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return &Static{ch: ch}
}

func (s *Static) Records() <-chan Record { return s.ch }

func (s *Static) Close() error { return nil }

// First returns a source's first record and closes the source. ok is false
// when the source closes without producing a record or ctx ends the wait.
func First(ctx context.Context, s Source) (Record, bool) {
	defer s.Close()
	select {
	case rec, ok := <-s.Records():
		return rec, ok
	case <-ctx.Done():
		return Record{}, false
	}
}
