package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"CuboTrack/internal/config"
	"CuboTrack/internal/model"

	"github.com/nats-io/nats.go"
)

// New builds the notifier named by cfg.Alerter.Notifier.
func New(cfg *config.Config) (model.Notifier, error) {
	switch cfg.Alerter.Notifier {
	case "", "log":
		return LogNotifier{}, nil
	case "email":
		return NewEmailNotifier(cfg.Alerter.SMTP), nil
	case "nats":
		return NewNATSNotifier(cfg.Probe.NATSURL, cfg.Probe.Subject+".alerts")
	default:
		return nil, fmt.Errorf("unknown notifier type: '%s'", cfg.Alerter.Notifier)
	}
}

// LogNotifier writes notices to the process log.
type LogNotifier struct{}

// Send logs the notice.
func (LogNotifier) Send(subject, body string) error {
	log.Printf("[alert] %s: %s", subject, body)
	return nil
}

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// Send sends a plain text email to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Notice is the JSON document published by NATSNotifier.
type Notice struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}

// NATSNotifier publishes notices on a NATS subject.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
}

// NewNATSNotifier connects to url and publishes on subject.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("cubo-alerter"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("[alert] Publishing notices on '%s' via %s", subject, url)
	return &NATSNotifier{nc: nc, subject: subject}, nil
}

// Send publishes the notice.
func (n *NATSNotifier) Send(subject, body string) error {
	data, err := json.Marshal(Notice{Subject: subject, Body: body, SentAt: time.Now().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	return n.nc.Publish(n.subject, data)
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	n.nc.Drain()
}
