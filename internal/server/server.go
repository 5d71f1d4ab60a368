package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Krillle/SignalKKit/client"
	api "github.com/Krillle/SignalKKit/internal/http"
	"github.com/Krillle/SignalKKit/store"
)

// StatusConfig configures the local status HTTP server.
type StatusConfig struct {
	ListenAddr   string                   // address to bind (e.g. :8090)
	Values       *store.Store             // required
	Stream       *client.StreamConnection // required
	Logger       *log.Logger              // optional; defaults to log.Default()
	ReadTimeout  time.Duration            // optional
	WriteTimeout time.Duration            // optional
	IdleTimeout  time.Duration            // optional
}

var (
	ErrNilStore  = errors.New("status server: value store is nil")
	ErrNilStream = errors.New("status server: stream connection is nil")
)

// StartStatusServer starts an HTTP server exposing /api/values and /api/status.
// It returns the *http.Server, a channel that will receive a terminal error (if any), and an error for immediate startup issues.
// The server stops when the supplied context is canceled.
func StartStatusServer(ctx context.Context, cfg StatusConfig) (*http.Server, <-chan error, error) {
	if cfg.Values == nil {
		return nil, nil, ErrNilStore
	}
	if cfg.Stream == nil {
		return nil, nil, ErrNilStream
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8090"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/values", api.ValuesHandler(cfg.Values))
	mux.HandleFunc("/api/status", api.StatusHandler(cfg.Stream))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 10*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}

	errCh := make(chan error, 1)

	go func() {
		cfg.Logger.Printf("status API listening on %s (GET /api/values, /api/status)", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Shutdown watcher
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv, errCh, nil
}

func durationOr(v time.Duration, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}
