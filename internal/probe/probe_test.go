package probe

import (
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"CuboTrack/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)

func TestDecodeDatagram_JSONObject(t *testing.T) {
	src := &net.UDPAddr{IP: net.ParseIP("192.168.4.20"), Port: 40001}
	d, ok := DecodeDatagram([]byte(` {"event":"start","session":7,"modo":"FAST"} `), src, stamp)
	require.True(t, ok)

	assert.Equal(t, "start", d["event"])
	assert.Equal(t, json.Number("7"), d["session"])
	assert.Equal(t, "2026-01-02 03:04:05", d["dt"])
	assert.Equal(t, "192.168.4.20", d["src_ip"])
	assert.Equal(t, 40001, d["src_port"])
	assert.Equal(t, "192.168.4.20 ev=start user= session=7 modo=FAST", d.String())
}

func TestDecodeDatagram_NonObjectIsRaw(t *testing.T) {
	for _, payload := range []string{"hello cube", "[1,2]", "42", "null", `{"a":1} trailing`} {
		d, ok := DecodeDatagram([]byte(payload), nil, stamp)
		require.True(t, ok, payload)
		assert.Equal(t, payload, d["raw"], payload)
		assert.Equal(t, "2026-01-02 03:04:05", d["dt"])
		_, hasIP := d["src_ip"]
		assert.False(t, hasIP)
	}
}

func TestDecodeDatagram_Empty(t *testing.T) {
	_, ok := DecodeDatagram([]byte("  \n "), nil, stamp)
	assert.False(t, ok)

	_, ok = DecodeDatagram([]byte{0xff, 0xfe}, nil, stamp)
	assert.False(t, ok, "payload with only invalid UTF-8 is empty after cleanup")
}

func TestCodec_KeepsFieldsAcrossTheBus(t *testing.T) {
	d, ok := DecodeDatagram([]byte(`{"event":"ok","session":3,"mic_freq":101.5,"user":"ana"}`),
		&net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 5001}, stamp)
	require.True(t, ok)

	data, err := Encode(d)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "ok", got["event"])
	assert.Equal(t, float64(3), got["session"])
	assert.Equal(t, 101.5, got["mic_freq"])
	assert.Equal(t, float64(5001), got["src_port"])
	assert.Equal(t, "ana", got["user"])
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestListener_Serve(t *testing.T) {
	l, err := Listen(config.ProbeConfig{ListenAddr: "127.0.0.1:0", MaxDatagram: 2048})
	require.NoError(t, err)
	l.now = func() time.Time { return stamp }

	got := make(chan Datagram, 4)
	done := make(chan error, 1)
	go func() { done <- l.Serve(func(d Datagram) { got <- d }) }()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("   "))
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"event":"stop","session":1}`))
	require.NoError(t, err)

	select {
	case d := <-got:
		assert.Equal(t, "stop", d["event"])
		assert.Equal(t, "127.0.0.1", d["src_ip"])
		assert.Equal(t, conn.LocalAddr().(*net.UDPAddr).Port, d["src_port"])
	case <-time.After(3 * time.Second):
		t.Fatal("datagram not received")
	}

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
	assert.Empty(t, got, "blank datagram must be ignored")
}

func TestPublisherSubscriber(t *testing.T) {
	url := os.Getenv("CUBO_TEST_NATS_URL")
	if url == "" {
		t.Skip("CUBO_TEST_NATS_URL not set")
	}
	cfg := config.ProbeConfig{NATSURL: url, Subject: "cubo.test.datagrams"}

	sub, err := NewSubscriber(cfg)
	require.NoError(t, err)
	defer sub.Close()
	got := make(chan Datagram, 1)
	require.NoError(t, sub.Start(func(d Datagram) { got <- d }))

	pub, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.Publish(Datagram{"event": "start", "session": json.Number("9")}))

	select {
	case d := <-got:
		assert.Equal(t, "start", d["event"])
		assert.Equal(t, float64(9), d["session"])
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}
