package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server until its context is cancelled and
// then shuts it down gracefully.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A non-positive timeout means 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// ctx is already cancelled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string { return "http-server" }

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthService pings the store on an interval and logs transitions
// between reachable and unreachable.
type StoreHealthService struct {
	store    Pinger
	interval time.Duration
	timeout  time.Duration
}

// NewStoreHealthService checks store every interval. A non-positive interval
// means 30s.
func NewStoreHealthService(store Pinger, interval time.Duration) *StoreHealthService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StoreHealthService{store: store, interval: interval, timeout: 5 * time.Second}
}

// Serve implements suture.Service.
func (s *StoreHealthService) Serve(ctx context.Context) error {
	log := logging.WithComponent("store-health")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.store.Ping(pingCtx)
		cancel()

		switch {
		case err != nil && healthy:
			log.Error().Err(err).Msg("store unreachable")
		case err == nil && !healthy:
			log.Info().Msg("store reachable again")
		}
		healthy = err == nil
	}
}

func (s *StoreHealthService) String() string { return "store-health" }
