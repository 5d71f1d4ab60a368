package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/client"
	"github.com/Krillle/SignalKKit/store"
)

// ValuesHandler builds an HTTP handler serving the latest-value snapshot.
func ValuesHandler(values *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := values.Snapshot()
		out := struct {
			Values map[string]sk.Value `json:"values"`
			Count  int                 `json:"count"`
		}{Values: snap, Count: len(snap)}
		w.Header().Set("Content-Type", "application/json")
		writeCORS(w)
		json.NewEncoder(w).Encode(out)
	}
}

// StatusHandler builds an HTTP handler reporting the stream connection state.
func StatusHandler(conn *client.StreamConnection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, port, endpoint := conn.Endpoint()
		out := struct {
			State        string `json:"state"`
			Host         string `json:"host,omitempty"`
			Port         int    `json:"port,omitempty"`
			URL          string `json:"url,omitempty"`
			Server       string `json:"server,omitempty"`
			Version      string `json:"version,omitempty"`
			Self         string `json:"self,omitempty"`
			LastReceived string `json:"lastReceived,omitempty"`
		}{State: conn.State().String(), Host: host, Port: port, URL: endpoint}
		if hello := conn.Hello(); hello != nil {
			out.Server = hello.Name
			out.Version = hello.Version
			out.Self = hello.Self
		}
		if d := conn.SinceLastReceived(); d > 0 {
			out.LastReceived = d.Round(time.Millisecond).String()
		}
		w.Header().Set("Content-Type", "application/json")
		writeCORS(w)
		json.NewEncoder(w).Encode(out)
	}
}

func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}
