// Package grpcserver exposes the service's gRPC surface: the standard health
// service, traced through the trace interceptors.
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/screenlocator/internal/trace"
)

// ServiceName is the health service name reported for the locator.
const ServiceName = "screenlocator"

// Server wraps a grpc.Server with health reporting.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// New creates a server that reports NOT_SERVING until SetServing(true).
func New() *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{srv: srv, health: hs}
	s.SetServing(false)
	return s
}

// SetServing updates both the overall and the locator service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// ServeWhenReady flips the status to SERVING once ready is closed.
func (s *Server) ServeWhenReady(ctx context.Context, ready <-chan struct{}) {
	select {
	case <-ready:
		s.SetServing(true)
		trace.Logger(ctx).Info("grpc health serving", "service", ServiceName)
	case <-ctx.Done():
	}
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
