package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariana-dev/timeline-gateway/internal/trace"
	"github.com/ariana-dev/timeline-gateway/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	var store trace.Store
	if cfg.databaseURL != "" {
		pg, err := trace.Open(cfg.databaseURL)
		if err != nil {
			slog.Error("open trace store", "error", err)
			os.Exit(1)
		}
		store = pg
		slog.Info("trace store ready", "backend", "postgres")
	} else {
		store = trace.NewMemStore()
		slog.Info("trace store ready", "backend", "memory")
	}
	defer store.Close()

	hub := ws.NewHub()

	// Webviews are notified from the writer's drain loop, after each batch
	// is persisted, so a rebuild triggered by the signal sees the new records.
	writer := trace.NewWriter(store, hub.Notify)
	defer writer.Close()

	handler := ws.NewHandler(ws.HandlerConfig{
		Source:        store,
		Hub:           hub,
		MaxConcurrent: cfg.maxWebviews,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:       cfg,
		store:     store,
		writer:    writer,
		wsHandler: handler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.shutdownTimeoutS)*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("timeline gateway listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
}
