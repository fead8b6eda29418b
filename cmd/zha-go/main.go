package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zha-go/internal/coordinator"
	"zha-go/internal/gateway"
	"zha-go/internal/store"
	"zha-go/internal/web"
	"zha-go/internal/zcl"
	"zha-go/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("zha-go starting", "version", version)

	registry := zcl.NewRegistry(logger)
	clusters.Register(registry)
	if err := zcl.LoadSchemaDir(cfg.SchemasDir, registry, logger); err != nil {
		logger.Error("load schemas", "err", err)
		os.Exit(1)
	}
	logger.Info("ZCL registry initialized", "clusters", len(registry.All()), "types", len(registry.Types()))

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	gw, err := gateway.Dial(gateway.Config{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		ClientID:    cfg.Gateway.ClientID,
		TopicPrefix: cfg.Gateway.TopicPrefix,
		Timeout:     cfg.Gateway.Timeout,
	}, logger)
	if err != nil {
		logger.Error("connect gateway", "err", err)
		os.Exit(1)
	}
	defer gw.Close()

	events := coordinator.NewEventBus(logger)
	coord := coordinator.New(gw, db, registry, events, coordinator.Config{
		BindableOnly: cfg.Bind.BindableOnly,
	}, logger)

	// No-op when built with the no_automation tag.
	auto, autoWebOpts := initAutomation(coord, cfg, logger)

	webOpts := []web.ServerOption{web.WithVersion(version)}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, autoWebOpts...)
	webServer := web.NewServer(coord, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// No-op when built with the no_mqtt tag or mqtt.bridge is false.
	mqtt := initMQTT(coord, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	coord.Stop()

	logger.Info("goodbye")
}
