package probe

import (
	"log"

	"CuboTrack/internal/config"

	"github.com/nats-io/nats.go"
)

// Publisher forwards datagrams to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("cubo-probe"))
	if err != nil {
		return nil, err
	}
	log.Printf("[probe] Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish encodes a datagram as a protobuf Struct and publishes it.
func (p *Publisher) Publish(d Datagram) error {
	data, err := Encode(d)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("[probe] NATS connection drained and closed.")
	}
}
