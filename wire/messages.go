package wire

import (
	"encoding/json"
	"errors"

	sk "github.com/Krillle/SignalKKit"
)

var (
	errNoRequests = errors.New("wire: empty subscription list")
	errNoPaths    = errors.New("wire: empty path list")
	errNotDelta   = errors.New("wire: frame carries no updates")
	errNotHello   = errors.New("wire: frame carries no version")
)

// BuildSubscribe constructs the control message registering the given
// requests. Duplicates are kept; the server treats repeated subscribes as
// idempotent.
func BuildSubscribe(context string, requests []sk.SubscriptionRequest) ([]byte, error) {
	if len(requests) == 0 {
		return nil, errNoRequests
	}
	return json.Marshal(map[string]interface{}{
		"context":   context,
		"subscribe": requests,
	})
}

// BuildUnsubscribe constructs the control message dropping the given paths.
func BuildUnsubscribe(context string, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return nil, errNoPaths
	}
	refs := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, map[string]string{"path": p})
	}
	return json.Marshal(map[string]interface{}{
		"context":     context,
		"unsubscribe": refs,
	})
}

// ParseDelta decodes an inbound frame as a delta. An error means the frame
// is not a usable delta; callers drop it and move on.
func ParseDelta(data []byte) (*sk.DeltaMessage, error) {
	var d sk.DeltaMessage
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if len(d.Updates) == 0 {
		return nil, errNotDelta
	}
	return &d, nil
}

// ParseHello decodes the greeting frame a server sends when the stream
// opens. Only frames announcing a protocol version qualify.
func ParseHello(data []byte) (*sk.Hello, error) {
	var h sk.Hello
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	if h.Version == "" {
		return nil, errNotHello
	}
	return &h, nil
}
