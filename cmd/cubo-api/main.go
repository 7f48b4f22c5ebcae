package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CuboTrack/internal/alerter"
	"CuboTrack/internal/api"
	"CuboTrack/internal/config"
	"CuboTrack/internal/engine/attribution"
	"CuboTrack/internal/engine/manager"
	"CuboTrack/internal/engine/regen"
	"CuboTrack/internal/factory"
	"CuboTrack/internal/notification"
	"CuboTrack/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cooldown, err := config.ParseDuration("report cooldown", cfg.Report.Cooldown)
	if err != nil {
		log.Fatalf("Invalid report configuration: %v", err)
	}
	timeout, err := config.ParseDuration("report timeout", cfg.Report.Timeout)
	if err != nil {
		log.Fatalf("Invalid report configuration: %v", err)
	}

	// Storage and engine
	st := store.New(cfg.Store)
	stateStore, err := store.NewStateStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open attribution state: %v", err)
	}

	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create report writers: %v", err)
	}
	regenerator := regen.NewRegenerator(st, writers, cooldown, timeout)
	if _, err := regenerator.Run(context.Background()); err != nil {
		log.Printf("Initial report regeneration failed: %v", err)
	}

	service := attribution.NewService(attribution.NewEngine(), stateStore, st, regenerator)
	poller, err := manager.NewManager(cfg, st.Events, service)
	if err != nil {
		log.Fatalf("Failed to create poller: %v", err)
	}
	if err := poller.Start(); err != nil {
		log.Fatalf("Failed to start poller: %v", err)
	}

	var watchdog *alerter.Alerter
	if cfg.Alerter.Enabled {
		notifier, err := notification.New(cfg)
		if err != nil {
			log.Fatalf("Failed to create notifier: %v", err)
		}
		watchdog, err = alerter.NewAlerter(&cfg.Alerter, service, notifier)
		if err != nil {
			log.Fatalf("Failed to create alerter: %v", err)
		}
		watchdog.Start()
	}

	live := api.NewLive(st, service, poller, regenerator, cfg.API.TailMax)

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.HTTPListenAddr,
		Handler: api.NewRouter(live, htmlRoot(cfg)),
	}
	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Start gRPC server
	lis, err := net.Listen("tcp", cfg.API.GRPCListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen for gRPC on %s: %v", cfg.API.GRPCListenAddr, err)
	}
	grpcServer := api.NewGRPCServer(live)
	go func() {
		log.Printf("gRPC server starting on %s", cfg.API.GRPCListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if watchdog != nil {
		watchdog.Stop()
	}
	poller.Stop()
	if closer, ok := stateStore.(interface{ Close() error }); ok {
		closer.Close()
	}
	log.Println("API server exited.")
}

// htmlRoot returns the root of the first enabled html writer, served under
// /reports/.
func htmlRoot(cfg *config.Config) string {
	for _, def := range cfg.Report.Writers {
		if def.Enabled && def.Type == "html" {
			if def.RootPath == "" {
				return "reports"
			}
			return def.RootPath
		}
	}
	return ""
}
