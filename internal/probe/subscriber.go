package probe

import (
	"log"

	"CuboTrack/internal/config"

	"github.com/nats-io/nats.go"
)

// Subscriber consumes datagrams published by a Publisher.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("cubo-sink"))
	if err != nil {
		return nil, err
	}
	log.Printf("[probe] Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the datagram subject and hands every decoded message
// to handler. Messages that fail to decode are logged and dropped.
func (s *Subscriber) Start(handler DatagramHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		d, err := Decode(msg.Data)
		if err != nil {
			log.Printf("[probe] %v", err)
			return
		}
		handler(d)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("[probe] Subscribed to '%s'. Waiting for datagrams...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("[probe] NATS connection closed.")
	}
}
