package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderflow-engine/broadcast"
	"orderflow-engine/config"
	"orderflow-engine/engine"
	"orderflow-engine/internal/httpapi"
	"orderflow-engine/metrics"
)

func main() {
	cfg, err := config.LoadFromEnv(os.Args[1:])
	if err != nil {
		log.Printf("🛑 config: %v", err)
		os.Exit(1)
	}

	tickTable, err := config.LoadTickTable("ticks.yaml", cfg.Thresholds.DefaultTick)
	if err != nil {
		log.Printf("🛑 tick table: %v", err)
		os.Exit(1)
	}

	eng := engine.New(cfg, tickTable, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := eng.Start(ctx); err != nil {
		log.Printf("🛑 engine: %v", err)
		cancel()
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", broadcast.NewServer(eng.Hub))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.NewRegistry(), promhttp.HandlerOpts{}))
	mux.Handle("/", httpapi.NewServer(eng.Store, eng.Cache).Handler())

	srv := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("🚀 HTTP/WebSocket server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ http server: %v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Println("🛑 shutdown signal received, draining...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	cancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️ engine shutdown: %v", err)
		os.Exit(2)
	}
	log.Println("👋 shutdown complete")
}
