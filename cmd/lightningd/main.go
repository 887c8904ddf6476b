// cmd/lightningd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/catalog"
	"github.com/moffa90/go-lightning/config"
	"github.com/moffa90/go-lightning/gateway"
	"github.com/moffa90/go-lightning/link"
	"github.com/moffa90/go-lightning/logging"
	"github.com/moffa90/go-lightning/server"
	"github.com/moffa90/go-lightning/session"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: lightningd <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	zl, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	logger := logging.FromZerolog(zl)

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
		if err != nil {
			zl.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("catalog load failed")
		}
	}

	// --------------------
	// Sessions, routes, websocket
	// --------------------

	hub := server.NewHub(logger)

	registry := session.NewRegistry(
		session.WithDialer(session.SerialDialer(link.Config{
			Baud:   cfg.Serial.Baud,
			Driver: link.Driver(cfg.Serial.Driver),
		})),
		session.WithCatalog(cat),
		session.WithEventSink(hub),
		session.WithLogger(logger),
		session.WithCommandTimeout(cfg.CommandTimeout()),
	)

	router := gateway.NewRouter(registry,
		gateway.WithLogger(logger),
		gateway.WithFirmwareDir(cfg.Firmware.Dir),
		gateway.WithUpdaterOptions(
			bootloader.WithLogger(logger),
			bootloader.WithBootloaderDelay(cfg.BootloaderDelay()),
			bootloader.WithFlashRange(*cfg.Firmware.FlashStart, *cfg.Firmware.FlashEnd),
		),
	)

	ws := server.New(router, hub, server.WithLogger(logger))

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, ws)
	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --------------------
	// Run until signaled
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl.Info().
			Str("listen", cfg.Server.Listen).
			Str("path", cfg.Server.Path).
			Strs("models", cat.Models()).
			Msg("gateway listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			zl.Error().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		zl.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("http shutdown failed")
	}
	ws.Shutdown()
	registry.CloseAll()
}
