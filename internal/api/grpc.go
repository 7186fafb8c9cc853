package api

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
)

// ServiceName is the gRPC health service name reported for the heatmap.
const ServiceName = "heatmap"

// SnapshotSource is the part of the refresh scheduler the health service
// follows.
type SnapshotSource interface {
	Snapshot() refresh.Snapshot
	Subscribe(bufSize int) (int, <-chan refresh.Snapshot)
	Unsubscribe(id int)
}

// HealthServer reports grpc.health.v1 status: SERVING once the scheduler
// holds data, NOT_SERVING before.
type HealthServer struct {
	srv *health.Server
	log *slog.Logger
}

// NewHealthServer creates a health server that starts NOT_SERVING.
func NewHealthServer(log *slog.Logger) *HealthServer {
	h := &HealthServer{srv: health.NewServer(), log: log.With("component", "health")}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// RegisterGRPC registers the health service on the given gRPC server.
func (h *HealthServer) RegisterGRPC(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, h.srv)
}

// Update sets the status from a snapshot.
func (h *HealthServer) Update(snap refresh.Snapshot) {
	if snap.HasData() {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Follow keeps the status in step with src until ctx is cancelled, then
// marks the service NOT_SERVING so clients drain before shutdown.
func (h *HealthServer) Follow(ctx context.Context, src SnapshotSource) {
	id, ch := src.Subscribe(4)
	defer src.Unsubscribe(id)

	h.Update(src.Snapshot())
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			h.Update(snap)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	// The empty name is the overall server status.
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
	h.log.Debug("health status", "status", status.String())
}
