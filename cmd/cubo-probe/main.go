package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CuboTrack/internal/config"
	"CuboTrack/internal/probe"
	"CuboTrack/internal/probe/persistent"
	"CuboTrack/internal/store"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "listen", "Operating mode: 'listen' to append datagrams to the event log, 'pub' to publish them to NATS, 'sub' to append datagrams received from NATS.")
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Mode Dispatch ---
	switch *mode {
	case "listen":
		runListener(cfg)
	case "pub":
		runPublisher(cfg)
	case "sub":
		runSubscriber(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runListener receives datagrams and appends them to the local event log.
func runListener(cfg *config.Config) {
	events := store.NewEventLog(cfg.Store.Path(cfg.Store.EventLog))
	log.Printf("Starting cubo-probe in LISTEN mode, writing to %s", events.Path())

	worker := persistent.NewWorker(events, cfg.Probe.ChannelBufferSize)
	defer worker.Stop()

	listener, err := probe.Listen(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}

	serve(listener, func(d probe.Datagram) {
		worker.Enqueue(d)
	})
}

// runPublisher receives datagrams and forwards them to NATS.
func runPublisher(cfg *config.Config) {
	log.Printf("Starting cubo-probe in PUB mode, publishing to '%s'", cfg.Probe.Subject)

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	listener, err := probe.Listen(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}

	serve(listener, func(d probe.Datagram) {
		if err := pub.Publish(d); err != nil {
			log.Printf("Failed to publish datagram: %v", err)
		}
	})
}

// runSubscriber appends datagrams received from NATS to the local event log.
func runSubscriber(cfg *config.Config) {
	events := store.NewEventLog(cfg.Store.Path(cfg.Store.EventLog))
	log.Printf("Starting cubo-probe in SUB mode, writing to %s", events.Path())

	worker := persistent.NewWorker(events, cfg.Probe.ChannelBufferSize)
	defer worker.Stop()

	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	if err := sub.Start(func(d probe.Datagram) {
		worker.Enqueue(d)
	}); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	waitForSignal()
}

// serve runs the listener until a shutdown signal arrives.
func serve(listener *probe.Listener, handler probe.DatagramHandler) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := listener.Serve(handler); err != nil {
			log.Printf("Listener stopped: %v", err)
		}
	}()

	waitForSignal()
	listener.Close()
	<-done
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
