// Package control exposes the running client's health on a unix socket so
// matrixctl can probe it.
package control

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/status"
)

// Server manages the gRPC server lifecycle for the control socket. Each
// account is a health service named by its user id; the empty service name
// is the client as a whole.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	bus        *bus.Bus
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewServer creates a gRPC server bound to socketPath.
func NewServer(socketPath string, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		bus:        b,
		logger:     logger,
	}, nil
}

// Start follows account status on the bus and serves requests in the
// background.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	events, unsub := s.bus.Subscribe("account.", 64)

	go func() {
		defer close(s.done)
		defer unsub()
		for {
			select {
			case evt := <-events:
				s.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("control server starting", zap.String("socket", s.socketPath))
	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			s.logger.Error("control server error", zap.Error(err))
		}
	}()
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("control server stopping")
	s.health.Shutdown()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}

func (s *Server) handleEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		s.health.SetServingStatus(p.Account, Serving(p.To))
	case string:
		switch evt.Kind {
		case bus.KindAccountAdded:
			s.health.SetServingStatus(p, healthpb.HealthCheckResponse_NOT_SERVING)
		case bus.KindAccountRemoved:
			s.health.SetServingStatus(p, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
		}
	}
}

// Serving maps an account state onto a health status. Only a synced
// account is serving.
func Serving(st status.State) healthpb.HealthCheckResponse_ServingStatus {
	if st == status.Synced {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
