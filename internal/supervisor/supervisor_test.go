package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
)

type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	started       chan struct{}
	stop          chan struct{}
	shutdownCalls atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stop
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdownCalls.Add(1)
	close(m.stop)
	return m.shutdownErr
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if n := srv.shutdownCalls.Load(); n != 1 {
		t.Errorf("Shutdown calls = %d, want 1", n)
	}
}

func TestHTTPServerService_ListenError(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(srv, 0)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

type flakyPinger struct {
	calls atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	if p.calls.Add(1)%2 == 0 {
		return errors.New("connection refused")
	}
	return nil
}

func TestStoreHealthService_PingsUntilCancelled(t *testing.T) {
	p := &flakyPinger{}
	svc := NewStoreHealthService(p, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want deadline exceeded", err)
	}
	if p.calls.Load() < 2 {
		t.Errorf("Ping calls = %d, want at least 2", p.calls.Load())
	}
}

func TestTree_ServesAndStops(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{ShutdownTimeout: time.Second})
	srv := newMockHTTPServer()
	tree.AddAPIService(NewHTTPServerService(srv, time.Second))
	tree.AddDataService(NewStoreHealthService(&flakyPinger{}, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-srv.started:
	case <-time.After(2 * time.Second):
		t.Fatal("http service was not started")
	}
	cancel()

	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := TreeConfig{FailureBackoff: time.Second}.withDefaults()
	if cfg.FailureBackoff != time.Second {
		t.Errorf("FailureBackoff overwritten: %v", cfg.FailureBackoff)
	}
	if cfg.FailureThreshold != 5 || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
