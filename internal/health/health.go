// Package health serves the standard gRPC health protocol. The controller
// service reports SERVING while the broker link is up.
package health

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service is the name checked by clients that want the controller itself
// rather than the process.
const Service = "hydroponic.Controller"

// Link is a connection whose state changes are pushed to fn; fn is called
// once right away with the current state.
type Link interface {
	Notify(fn func(connected bool))
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(opts ...grpc.ServerOption) *Server {
	s := &Server{grpc: grpc.NewServer(opts...), health: health.NewServer()}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	// the process is up; the controller waits for the broker
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Bind follows the broker state.
func (s *Server) Bind(l Link) {
	l.Notify(func(connected bool) {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if connected {
			st = healthpb.HealthCheckResponse_SERVING
		}
		s.health.SetServingStatus(Service, st)
	})
}

func (s *Server) Serve(lis net.Listener) error {
	log.Printf("health: gRPC listening on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop marks everything NOT_SERVING so watchers see the shutdown, then stops.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
