package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"CuboTrack/internal/config"
	"CuboTrack/internal/engine/protocol"
	"CuboTrack/internal/probe"
	"CuboTrack/internal/store"
	"CuboTrack/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	port := flag.Int("port", -1, "Device UDP port to keep (default: probe.device_port, 0 keeps every port).")
	dryRun := flag.Bool("dry-run", false, "Print the datagrams instead of appending them.")
	flag.Parse()

	// 1. Get pcap file path from command-line arguments
	if flag.NArg() < 1 {
		fmt.Println("Usage: cubo-replay [-config path] [-port N] [-dry-run] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port < 0 {
		*port = cfg.Probe.DevicePort
	}

	events := store.NewEventLog(cfg.Store.Path(cfg.Store.EventLog))

	pcapReader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer pcapReader.Close()
	log.Printf("Reading datagrams for port %d from '%s'...", *port, pcapFilePath)

	// 3. Read datagrams and append them in capture order
	out := make(chan *protocol.DeviceDatagram, 256)
	errc := make(chan error, 1)
	go func() { errc <- pcapReader.ReadDatagrams(uint16(*port), out) }()

	appended := 0
	for dg := range out {
		d, ok := probe.DecodeDatagram(dg.Payload, dg.SrcAddr(), dg.Timestamp.Local())
		if !ok {
			continue
		}
		if *dryRun {
			fmt.Println(d.String())
			continue
		}
		if err := events.Append(d); err != nil {
			log.Fatalf("Failed to append datagram: %v", err)
		}
		appended++
	}
	if err := <-errc; err != nil {
		log.Fatalf("Failed to read capture: %v", err)
	}

	log.Printf("Finished: %d datagrams appended to %s.", appended, events.Path())
}
