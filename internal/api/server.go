// Package api hosts the heatmap's network listeners: the HTTP API and the
// gRPC health service, started and stopped together.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// ShutdownTimeout bounds graceful shutdown of both listeners.
const ShutdownTimeout = 5 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	log      *slog.Logger

	httpServer *http.Server
	grpcServer *grpc.Server

	httpLn net.Listener
	grpcLn net.Listener
}

// NewServer creates a Server serving handler on httpAddr and health on
// grpcAddr. An empty grpcAddr or nil health disables gRPC.
func NewServer(httpAddr, grpcAddr string, handler http.Handler, health *HealthServer, log *slog.Logger) *Server {
	s := &Server{
		httpAddr:   httpAddr,
		grpcAddr:   grpcAddr,
		log:        log.With("component", "api"),
		httpServer: &http.Server{Addr: httpAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second},
	}
	if grpcAddr != "" && health != nil {
		s.grpcServer = grpc.NewServer()
		health.RegisterGRPC(s.grpcServer)
	}
	return s
}

// Listen binds both listeners without serving, so callers can learn the
// bound addresses.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	s.httpLn = ln
	if s.grpcServer != nil {
		gln, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
		}
		s.grpcLn = gln
	}
	return nil
}

// HTTPAddr returns the bound HTTP address, or the configured one before
// Listen.
func (s *Server) HTTPAddr() string {
	if s.httpLn != nil {
		return s.httpLn.Addr().String()
	}
	return s.httpAddr
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (s *Server) GRPCAddr() string {
	if s.grpcLn != nil {
		return s.grpcLn.Addr().String()
	}
	if s.grpcServer == nil {
		return ""
	}
	return s.grpcAddr
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. Cancellation triggers a
// graceful shutdown and returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpLn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", s.HTTPAddr())
		if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if s.grpcServer != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", s.GRPCAddr())
			if err := s.grpcServer.Serve(s.grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers. gRPC
// is stopped hard if it has not drained by the time ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
