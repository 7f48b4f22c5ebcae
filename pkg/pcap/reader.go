package pcap

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"CuboTrack/internal/engine/protocol"

	"github.com/google/gopacket/pcapgo"
)

// Reader reads UDP datagrams from a pcap file. It uses the pure Go pcapgo
// decoder, so no libpcap is needed.
type Reader struct {
	file *os.File
	r    *pcapgo.Reader
}

// NewReader opens a pcap file.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header of %s: %w", filePath, err)
	}
	return &Reader{file: f, r: r}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadDatagrams sends every UDP datagram addressed to port (0 for any port)
// to out, in capture order, and closes out when the file is exhausted.
// Frames that are not IPv4/UDP are skipped.
func (r *Reader) ReadDatagrams(port uint16, out chan<- *protocol.DeviceDatagram) error {
	defer close(out)

	linkType := r.r.LinkType()
	for {
		data, ci, err := r.r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}

		d, err := protocol.ParseDatagram(data, linkType, ci.Timestamp)
		if err != nil {
			continue
		}
		if port != 0 && d.DstPort != port {
			continue
		}
		if len(d.Payload) == 0 {
			log.Printf("[replay] Empty datagram from %s, skipping", d.SrcAddr())
			continue
		}
		out <- d
	}
}
