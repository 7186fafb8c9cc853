package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu   sync.Mutex
	snap refresh.Snapshot
	ch   chan refresh.Snapshot
}

func (f *fakeSource) Snapshot() refresh.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe(int) (int, <-chan refresh.Snapshot) {
	return 0, f.ch
}

func (f *fakeSource) Unsubscribe(int) {}

func (f *fakeSource) publish(snap refresh.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	f.ch <- snap
}

func withData() refresh.Snapshot {
	return refresh.Snapshot{Seq: 1, Sectors: []domain.Sector{{Name: "TECH", Stocks: []domain.Stock{{Quote: domain.Quote{Symbol: "AAPL"}}}}}}
}

func checkStatus(t *testing.T, ctx context.Context, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestServerServesHTTPAndHealth(t *testing.T) {
	src := &fakeSource{ch: make(chan refresh.Snapshot, 4)}
	hs := NewHealthServer(discard)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "pong") })

	s := NewServer("127.0.0.1:0", "127.0.0.1:0", mux, hs, discard)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runCtx, stop := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(runCtx) }()

	followCtx, stopFollow := context.WithCancel(ctx)
	defer stopFollow()
	go hs.Follow(followCtx, src)

	resp, err := http.Get("http://" + s.HTTPAddr() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}

	conn, err := grpc.NewClient(s.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	if got := checkStatus(t, ctx, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status before data = %v, want NOT_SERVING", got)
	}

	src.publish(withData())
	deadline := time.Now().Add(5 * time.Second)
	for checkStatus(t, ctx, client, ServiceName) != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("status never became SERVING")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := checkStatus(t, ctx, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall status = %v, want SERVING", got)
	}

	stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("ListenAndServe() = %v, want nil after cancel", err)
		}
	case <-ctx.Done():
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestHealthUpdate(t *testing.T) {
	hs := NewHealthServer(discard)
	ctx := context.Background()

	resp, err := hs.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial = %v, %v", resp.GetStatus(), err)
	}
	hs.Update(withData())
	resp, _ = hs.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after data = %v, want SERVING", resp.GetStatus())
	}
	hs.Update(refresh.Snapshot{Err: refresh.ErrorBanner})
	resp, _ = hs.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("without data = %v, want NOT_SERVING", resp.GetStatus())
	}
}

func TestGRPCDisabled(t *testing.T) {
	s := NewServer("127.0.0.1:0", "", http.NewServeMux(), NewHealthServer(discard), discard)
	if s.GRPCAddr() != "" {
		t.Errorf("GRPCAddr() = %q, want empty when disabled", s.GRPCAddr())
	}
}
