package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"CuboTrack/pkg/pcap"
)

var modes = []string{"FAST", "SLOW", "MIC"}

func main() {
	outputFile := flag.String("o", "sessions.pcap", "Output pcap file path")
	sessions := flag.Int("sessions", 5, "Number of device sessions to generate")
	events := flag.Int("events", 20, "OK/ERR datagrams per session")
	devices := flag.Int("devices", 2, "Number of devices taking turns")
	port := flag.Int("port", 5000, "Destination UDP port")
	lossRate := flag.Float64("lose-stop", 0, "Probability of dropping a session's STOP datagram")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w, err := pcap.NewWriter(f)
	if err != nil {
		log.Fatalf("Failed to create pcap writer: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	server := &net.UDPAddr{IP: net.IPv4(192, 168, 4, 1), Port: *port}
	ts := time.Now().Add(-time.Duration(*sessions) * 10 * time.Minute)
	written := 0

	emit := func(src *net.UDPAddr, fields map[string]any) {
		payload, err := json.Marshal(fields)
		if err != nil {
			log.Fatalf("Failed to encode datagram: %v", err)
		}
		if err := w.WriteDatagram(ts, src, server, payload); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
		written++
		ts = ts.Add(time.Duration(200+rng.Intn(800)) * time.Millisecond)
	}

	log.Printf("Generating %d sessions into %s...", *sessions, *outputFile)

	for s := 1; s <= *sessions; s++ {
		device := &net.UDPAddr{IP: net.IPv4(192, 168, 4, byte(10+(s-1)%max(*devices, 1))), Port: 4210}
		mode := modes[rng.Intn(len(modes))]
		started := ts

		emit(device, map[string]any{"event": "start", "session": s, "modo": mode})

		ok, errs := 0, 0
		for i := 0; i < *events; i++ {
			ev := "ok"
			if rng.Float64() < 0.2 {
				ev = "err"
				errs++
			} else {
				ok++
			}
			emit(device, map[string]any{
				"event":     ev,
				"session":   s,
				"modo":      mode,
				"ok_total":  ok,
				"err_total": errs,
				"mic_freq":  400 + rng.Float64()*600,
				"mic_int":   rng.Intn(100),
				"mic_type":  rng.Intn(3),
			})
		}

		if rng.Float64() < *lossRate {
			log.Printf("Session %d: STOP dropped", s)
		} else {
			emit(device, map[string]any{
				"event":     "stop",
				"session":   s,
				"modo":      mode,
				"total_ms":  ts.Sub(started).Milliseconds(),
				"ok_total":  ok,
				"err_total": errs,
			})
		}
		ts = ts.Add(time.Duration(30+rng.Intn(90)) * time.Second)
	}

	log.Printf("Successfully generated %d datagrams into %s.", written, *outputFile)
}
