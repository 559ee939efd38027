package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fraudserve/internal/shared/config"
	"fraudserve/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Artifacts.Version,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			MetricsPort:    cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("Telemetry shutdown error: %v", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv, errCh := StartServers(NewServerConfigFromConfig(handler, cfg))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		log.Printf("Listener failed: %v", serveErr)
	}

	if err := GracefulShutdown(srv, redirectSrv, cfg.Server.ShutdownTimeout); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	return serveErr
}
