package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flichub/internal/config"
	"flichub/internal/discovery"
	"flichub/internal/hub"
	"flichub/internal/microservices/http-api/handler"
	"flichub/internal/microservices/tcp"
	"flichub/internal/relay"

	"github.com/gin-gonic/gin"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, closeHub, err := buildHub(ctx, cfg, logger)
	if err != nil {
		logger.Error("hub_init_failed", "backend", cfg.HubBackend, "error", err.Error())
		os.Exit(1)
	}
	defer closeHub()

	opts := cfg.RelayOptions(logger)
	manager := relay.NewConnectionManager(logger)

	logger.Info("starting_relay_server",
		"tcp_addr", cfg.TCPAddr(),
		"hub_backend", cfg.HubBackend,
		"idle_pulse", cfg.IdlePulseEnabled,
		"refresh_interval", cfg.ButtonRefreshInterval.String(),
		"version", relay.Version,
	)

	// Create and start TCP server
	server := tcp.NewServer(cfg.TCPAddr(), h, manager, opts)

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	// HTTP API + websocket share the session listing with TCP
	var httpServer *http.Server
	if cfg.HTTPEnabled {
		if !cfg.IsDevelopment() {
			gin.SetMode(gin.ReleaseMode)
		}
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr(),
			Handler:           handler.NewRouter(h, manager, opts, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http_server_started", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	var advertiser *discovery.Advertiser
	if cfg.MDNSEnabled {
		select {
		case <-server.Ready():
			advertiser = discovery.NewAdvertiser(cfg.MDNSInstance, relay.Version, logger)
			if err := advertiser.Start(cfg.TCPPort); err != nil {
				// the relay works without discovery
				logger.Warn("mdns_start_failed", "error", err.Error())
				advertiser = nil
			}
		case err := <-errChan:
			logger.Error("server_error", "error", err.Error())
			os.Exit(1)
		}
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		exitCode = 1
	}

	if advertiser != nil {
		advertiser.Stop()
	}
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err.Error())
		}
		shutdownCancel()
	}
	// closes websocket sessions too, since they share the manager
	server.Stop()
	logger.Info("server_stopped_gracefully")

	if exitCode != 0 {
		closeHub()
		os.Exit(exitCode)
	}
}

// buildHub returns the configured backend and its cleanup func.
func buildHub(ctx context.Context, cfg *config.Config, logger *slog.Logger) (hub.Hub, func(), error) {
	switch cfg.HubBackend {
	case "redis":
		rh, err := hub.NewRedisHub(ctx, hub.RedisOptions{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := rh.Start(ctx); err != nil {
			rh.Close()
			return nil, nil, err
		}
		return rh, func() { rh.Close() }, nil

	default:
		mh := hub.NewMemoryHub()
		if cfg.HubFixturePath != "" {
			fixture, err := hub.LoadFixture(cfg.HubFixturePath)
			if err != nil {
				return nil, nil, err
			}
			fixture.Apply(mh)
			logger.Info("hub_fixture_loaded", "path", cfg.HubFixturePath, "buttons", len(fixture.Buttons))
		}
		return mh, func() {}, nil
	}
}
