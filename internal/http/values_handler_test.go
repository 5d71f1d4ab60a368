package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/client"
	"github.com/Krillle/SignalKKit/store"
)

func TestValuesHandlerEmpty(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/values", nil)
	ValuesHandler(store.New())(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("missing content-type")
	}
}

func TestValuesHandlerSnapshot(t *testing.T) {
	values := store.New()
	ref, ok := sk.ResolvePath("vessels.self", "", "navigation.speedOverGround")
	if !ok {
		t.Fatalf("resolve failed")
	}
	values.Put(ref, sk.FloatValue(4.2))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/values", nil)
	ValuesHandler(values)(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var out struct {
		Values map[string]json.RawMessage `json:"values"`
		Count  int                        `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d, want absolute and relative keys", out.Count)
	}
	if string(out.Values["navigation.speedOverGround"]) != "4.2" {
		t.Fatalf("value = %s", out.Values["navigation.speedOverGround"])
	}
}

func TestStatusHandlerDisconnected(t *testing.T) {
	conn := client.NewStreamConnection(sk.Options{}, client.NewSubscriptionManager("vessels.self"), store.New(), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/status", nil)
	StatusHandler(conn)(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200 got %d", rr.Code)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["state"] != "disconnected" {
		t.Fatalf("state = %v", out["state"])
	}
	if _, ok := out["url"]; ok {
		t.Fatalf("url must be omitted while disconnected: %v", out)
	}
}
