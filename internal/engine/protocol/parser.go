package protocol

import (
	"errors"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	ErrNotIPv4 = errors.New("not an IPv4 packet")
	ErrNotUDP  = errors.New("not a UDP packet")
)

// DeviceDatagram is one UDP payload recovered from a captured frame.
type DeviceDatagram struct {
	Timestamp time.Time
	SrcIP     net.IP
	DstIP     net.IP
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

// SrcAddr returns the sender as a UDP address.
func (d *DeviceDatagram) SrcAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: d.SrcIP, Port: int(d.SrcPort)}
}

// ParseDatagram decodes a captured frame of the given link type and
// extracts its IPv4/UDP payload. ts is the capture timestamp.
func ParseDatagram(data []byte, linkType layers.LinkType, ts time.Time) (*DeviceDatagram, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.Default)

	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return nil, ErrNotIPv4
	}
	ip := l.(*layers.IPv4)

	l = packet.Layer(layers.LayerTypeUDP)
	if l == nil {
		return nil, ErrNotUDP
	}
	udp := l.(*layers.UDP)

	return &DeviceDatagram{
		Timestamp: ts,
		SrcIP:     ip.SrcIP,
		DstIP:     ip.DstIP,
		SrcPort:   uint16(udp.SrcPort),
		DstPort:   uint16(udp.DstPort),
		Payload:   udp.Payload,
	}, nil
}
