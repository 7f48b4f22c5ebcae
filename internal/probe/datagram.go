package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"CuboTrack/internal/model"
)

// Datagram is one device payload, decoded and stamped, ready to be appended
// to the event log.
type Datagram map[string]any

// DecodeDatagram turns a raw UDP payload into a Datagram. Payloads that are
// not a JSON object are kept verbatim under "raw". Empty payloads are
// rejected.
func DecodeDatagram(payload []byte, src *net.UDPAddr, at time.Time) (Datagram, bool) {
	text := strings.TrimSpace(strings.ToValidUTF8(string(payload), ""))
	if text == "" {
		return nil, false
	}

	d := Datagram{}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil || dec.More() {
		d = Datagram{"raw": text}
	}
	if d == nil {
		// JSON null
		d = Datagram{"raw": text}
	}

	d["dt"] = at.Format(model.DateTimeLayout)
	if src != nil {
		d["src_ip"] = src.IP.String()
		d["src_port"] = src.Port
	}
	return d, true
}

func (d Datagram) label(key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// String renders the one-line summary printed for every datagram.
func (d Datagram) String() string {
	ev := d.label("event")
	if ev == "" {
		ev = d.label("raw")
	}
	if ev == "" {
		ev = "?"
	}
	return fmt.Sprintf("%s ev=%s user=%s session=%s modo=%s",
		d.label("src_ip"), ev, d.label("user"), d.label("session"), d.label("modo"))
}
