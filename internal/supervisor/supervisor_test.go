package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mocks ---

type mockHTTPServer struct {
	listenErr error
	block     bool
	shutdowns atomic.Int32
	started   chan struct{}
	stopCh    chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	select {
	case m.started <- struct{}{}:
	default:
	}
	if m.listenErr != nil {
		return m.listenErr
	}
	if m.block {
		<-m.stopCh
		return http.ErrServerClosed
	}
	return nil
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return nil
}

// countingService counts Serve calls and blocks until ctx ends.
type countingService struct {
	runs atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	c.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

// --- Tests ---

var _ suture.Service = (*HTTPService)(nil)

func TestHTTPService_GracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer()
	srv.block = true
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("shutdowns = %d, want 1", srv.shutdowns.Load())
	}
}

func TestHTTPService_ListenError(t *testing.T) {
	srv := newMockHTTPServer()
	srv.listenErr = errors.New("address in use")

	err := NewHTTPService(srv, 0).Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve = %v, want wrapped listen error", err)
	}
}

func TestHTTPService_String(t *testing.T) {
	if got := NewHTTPService(newMockHTTPServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q, want http-server", got)
	}
}

func TestTree_RunsServices(t *testing.T) {
	tree := NewTree(zap.NewNop(), TreeConfig{ShutdownTimeout: time.Second})
	worker := &countingService{}
	api := &countingService{}
	tree.AddWorker(worker)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for worker.runs.Load() == 0 || api.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("services never started")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5 || cfg.FailureBackoff != 15*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEventHook_LogsBackoff(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	hook := EventHook(zap.New(core))

	hook(suture.EventBackoff{SupervisorName: "recdex"})
	hook(suture.EventResume{SupervisorName: "recdex"})

	if logs.FilterMessage("Supervisor entering backoff").Len() != 1 {
		t.Error("expected backoff log")
	}
	if logs.FilterMessage("Supervisor resuming").Len() != 1 {
		t.Error("expected resume log")
	}
}
