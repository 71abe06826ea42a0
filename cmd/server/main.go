// Locator server - keeps an indexed screen snapshot and serves icon searches
// over HTTP, WebSocket and gRPC health
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/screenlocator/internal/config"
	"github.com/GriffinCanCode/screenlocator/internal/grpcclient"
	"github.com/GriffinCanCode/screenlocator/internal/grpcserver"
	"github.com/GriffinCanCode/screenlocator/internal/icons"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator"
	"github.com/GriffinCanCode/screenlocator/internal/screen"
	"github.com/GriffinCanCode/screenlocator/internal/server"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg))
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	registry := icons.NewRegistry()
	if _, err := registry.LoadDir(cfg.IconDir); err != nil {
		slog.Warn("no icons loaded", "dir", cfg.IconDir, "error", err)
	}

	var capturer screen.Capturer
	if cfg.ScreenSource != "" {
		capturer = screen.NewFromFile(cfg.ScreenSource)
	} else {
		capturer = screen.New()
	}

	orch := orchestrator.New(cfg, capturer, registry)
	srv := server.New(orch)
	grpcSrv := grpcserver.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		slog.Error("orchestrator error", "error", err)
		os.Exit(1)
	}
	go grpcSrv.ServeWhenReady(ctx, orch.Ready())

	// Start gRPC server
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("locator server starting", "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr,
			"icons", registry.Len(), "debug_frames", cfg.Debug.Enabled)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcSrv.Stop()
	orch.Stop()
	slog.Info("shutdown complete")
}

// healthcheck probes a running server's gRPC health service and returns the
// process exit code.
func healthcheck(cfg *config.Config) int {
	addr := cfg.GRPCAddr
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}

	c, err := grpcclient.New(addr)
	if err != nil {
		slog.Error("healthcheck failed", "addr", addr, "error", err)
		return 1
	}
	defer func() { _ = c.Close() }()

	serving, err := c.Check(context.Background(), grpcserver.ServiceName)
	if err != nil || !serving {
		slog.Error("not serving", "addr", addr, "error", err)
		return 1
	}
	return 0
}
