// Package grpcclient provides a health probe client for the locator's gRPC server
package grpcclient

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// Client wraps the health service client
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
}

// New creates a client for addr. The connection is established lazily.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "invalid grpc address").WithMetadata("addr", addr)
	}
	return &Client{conn: conn, Health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check reports whether service is SERVING.
func (c *Client) Check(ctx context.Context, service string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, apperrors.FromGRPCError(err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// WaitServing polls until service is SERVING or ctx ends. Unreachable servers
// are polled again; other errors end the wait.
func (c *Client) WaitServing(ctx context.Context, service string) error {
	ticker := time.NewTicker(DefaultHealthCheckInterval)
	defer ticker.Stop()

	for {
		serving, err := c.Check(ctx, service)
		if serving {
			return nil
		}
		if err != nil && !apperrors.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.CodeTimeout, "service not serving").WithMetadata("service", service)
		case <-ticker.C:
		}
	}
}
