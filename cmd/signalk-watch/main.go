package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	sk "github.com/Krillle/SignalKKit"
	"github.com/Krillle/SignalKKit/client"
	"github.com/Krillle/SignalKKit/discovery"
	"github.com/Krillle/SignalKKit/internal/server"
	"github.com/Krillle/SignalKKit/kv"
	"github.com/Krillle/SignalKKit/store"
	"github.com/Krillle/SignalKKit/token"
)

// signalk-watch: subscribes to a set of paths on a server, prints updates and
// serves the latest values on a local status API. Paths come from the command
// line; connection settings from SIGNALK_HOST / SIGNALK_PORT.
func main() {
	flag.Parse()

	host := os.Getenv("SIGNALK_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 3000
	if v := os.Getenv("SIGNALK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			port = p
		}
	}
	addr := os.Getenv("SIGNALK_WATCH_ADDR")
	if addr == "" {
		addr = ":8090"
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{"navigation.position", "navigation.speedOverGround"}
	}

	opts := sk.DefaultOptions()

	ctx, cancel := context.WithCancel(context.Background())

	// The env endpoint rides the discovery feed like an mDNS record would.
	feed := discovery.NewStatic(discovery.Record{
		Name:   "signalk",
		Type:   "_signalk-ws._tcp",
		Domain: "local.",
		Host:   host,
		Port:   port,
	})
	endpoint, ok := discovery.First(ctx, feed)
	if !ok {
		log.Fatalf("no server endpoint available")
	}

	var kvs kv.Store = kv.NewMemory()
	stateDir := os.Getenv("SIGNALK_STATE_DIR")
	if stateDir == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			stateDir = filepath.Join(cache, "signalk-watch")
		}
	}
	if stateDir != "" {
		if f, err := kv.NewFile(stateDir); err == nil {
			kvs = f
		} else {
			log.Printf("token state will not persist: %v", err)
		}
	}

	scheme := "http"
	if endpoint.Port == 443 || endpoint.Port == 3443 {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s:%d", scheme, endpoint.Host, endpoint.Port)

	tokens := token.New(kvs, token.Options{BaseURL: baseURL, Description: "signalk-watch"})
	values := store.New()
	subs := client.NewSubscriptionManager(opts.Context)
	conn := client.NewStreamConnection(opts, subs, values, tokens)

	events := conn.Subscribe(64)
	go func() {
		for evt := range events.C() {
			switch evt.Kind {
			case sk.EventConnected:
				log.Printf("connected to %s", evt.Source)
			case sk.EventDisconnected:
				log.Printf("disconnected: %v", evt.Payload)
			case sk.EventHello:
				if hello, ok := evt.Payload.(*sk.Hello); ok {
					log.Printf("server %q version %s self=%s", hello.Name, hello.Version, hello.Self)
				}
			case sk.EventUpdate:
				if change, ok := evt.Payload.(sk.ValueChange); ok {
					log.Printf("%s = %s", change.Path.Relative, formatValue(change.Value))
				}
			}
		}
	}()

	// Grab a token up front when the server grants one; the stream and REST
	// calls pick it up from the shared store.
	tokens.EnsureTokenAvailable(ctx)

	requests := make([]sk.SubscriptionRequest, 0, len(paths))
	for _, p := range paths {
		requests = append(requests, sk.SubscriptionRequest{Path: p, Policy: sk.PolicyInstant})
	}
	rec := client.NewReconnector(conn, subs, endpoint.Host, endpoint.Port, requests...)
	go rec.Run(ctx)

	api := client.NewAPIClient(baseURL, tokens, opts)
	go func() {
		if body, err := api.Get(ctx, "/signalk/v1/api/vessels/self"); err != nil {
			log.Printf("vessel lookup failed: %v", err)
		} else {
			log.Printf("vessel document: %d bytes", len(body))
		}
	}()

	_, errCh, err := server.StartStatusServer(ctx, server.StatusConfig{ListenAddr: addr, Values: values, Stream: conn})
	if err != nil {
		log.Fatalf("failed to start status API: %v", err)
	}
	go func() {
		if err := <-errCh; err != nil {
			log.Printf("status API error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("signalk-watch running on %s (GET /api/values, /api/status), watching %v on %s:%d", addr, paths, endpoint.Host, endpoint.Port)
	<-sigCh
	log.Printf("shutdown signal received; stopping")
	cancel()
	rec.Stop()
	conn.Disconnect()
}

func formatValue(v sk.Value) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}
