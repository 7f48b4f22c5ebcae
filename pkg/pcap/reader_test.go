package pcap

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CuboTrack/internal/engine/protocol"
)

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create capture: %v", err)
	}
	defer f.Close()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	device := &net.UDPAddr{IP: net.IPv4(192, 168, 4, 20), Port: 49152}
	server := &net.UDPAddr{IP: net.IPv4(192, 168, 4, 1), Port: 5000}
	other := &net.UDPAddr{IP: net.IPv4(192, 168, 4, 1), Port: 53}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	frames := []struct {
		dst     *net.UDPAddr
		payload string
	}{
		{server, `{"event":"start","session":1}`},
		{other, "dns"},
		{server, `{"event":"ok","session":1}`},
		{server, `{"event":"stop","session":1}`},
	}
	for i, fr := range frames {
		if err := w.WriteDatagram(base.Add(time.Duration(i)*time.Second), device, fr.dst, []byte(fr.payload)); err != nil {
			t.Fatalf("WriteDatagram failed: %v", err)
		}
	}
	return path
}

func TestReader_ReadDatagrams(t *testing.T) {
	reader, err := NewReader(writeCapture(t))
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	out := make(chan *protocol.DeviceDatagram)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadDatagrams(5000, out) }()

	var got []*protocol.DeviceDatagram
	for d := range out {
		got = append(got, d)
	}
	if err := <-errc; err != nil {
		t.Fatalf("ReadDatagrams failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 datagrams for port 5000, got %d", len(got))
	}
	if string(got[2].Payload) != `{"event":"stop","session":1}` {
		t.Errorf("Unexpected last payload %q", got[2].Payload)
	}
	if got[0].SrcAddr().String() != "192.168.4.20:49152" {
		t.Errorf("Unexpected source %s", got[0].SrcAddr())
	}
	want := time.Date(2026, 5, 1, 12, 0, 3, 0, time.UTC)
	if !got[2].Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %s, got %s", want, got[2].Timestamp)
	}
}

func TestReader_AnyPort(t *testing.T) {
	reader, err := NewReader(writeCapture(t))
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	out := make(chan *protocol.DeviceDatagram, 8)
	if err := reader.ReadDatagrams(0, out); err != nil {
		t.Fatalf("ReadDatagrams failed: %v", err)
	}
	count := 0
	for range out {
		count++
	}
	if count != 4 {
		t.Errorf("Expected 4 datagrams, got %d", count)
	}
}

func TestNewReader_NotPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.pcap")
	if err := os.WriteFile(path, []byte("not a capture"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(path); err == nil {
		t.Error("Expected an error for a non-pcap file")
	}
}
