package main

import (
	"context"
	"flag"
	"log"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/engine/regen"
	"CuboTrack/internal/factory"
	_ "CuboTrack/internal/report"
	"CuboTrack/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	timeout, err := config.ParseDuration("report timeout", cfg.Report.Timeout)
	if err != nil {
		log.Fatalf("Invalid report configuration: %v", err)
	}

	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create report writers: %v", err)
	}
	if len(writers) == 0 {
		log.Fatalf("No report writer is enabled in %s", *configPath)
	}

	st := store.New(cfg.Store)
	regenerator := regen.NewRegenerator(st, writers, 0, timeout)

	start := time.Now()
	report, err := regenerator.Run(context.Background())
	if err != nil {
		log.Fatalf("Report regeneration failed: %v", err)
	}
	log.Printf("Report %s written in %s: %d operators, %d sessions.",
		report.RunID, time.Since(start).Round(time.Millisecond), len(report.Operators), report.SessionCount())
}
