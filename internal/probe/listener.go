package probe

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/metrics"
)

// DatagramHandler processes one decoded datagram.
type DatagramHandler func(d Datagram)

// Listener receives device datagrams on a UDP socket.
type Listener struct {
	conn        *net.UDPConn
	maxDatagram int
	now         func() time.Time
}

// Listen binds the UDP socket described by cfg.
func Listen(cfg config.ProbeConfig) (*Listener, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %q: %w", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	maxDatagram := cfg.MaxDatagram
	if maxDatagram <= 0 {
		maxDatagram = 2048
	}
	log.Printf("[probe] Listening on %s", conn.LocalAddr())
	return &Listener{conn: conn, maxDatagram: maxDatagram, now: time.Now}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads datagrams until the listener is closed. Oversized datagrams are
// truncated to the configured maximum.
func (l *Listener) Serve(handler DatagramHandler) error {
	buf := make([]byte, l.maxDatagram)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[probe] Read error: %v", err)
			continue
		}
		metrics.DatagramsReceived.Inc()

		d, ok := DecodeDatagram(buf[:n], src, l.now())
		if !ok {
			continue
		}
		log.Printf("[probe] %s", d)
		handler(d)
	}
}

// Close stops Serve.
func (l *Listener) Close() error {
	return l.conn.Close()
}
