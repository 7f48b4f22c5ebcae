package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig locates the on-disk documents shared by every component.
type StoreConfig struct {
	Dir               string `yaml:"dir"`
	EventLog          string `yaml:"event_log"`
	StateFile         string `yaml:"state_file"`
	SessionMap        string `yaml:"session_map"`
	KnownOperators    string `yaml:"known_operators"`
	MaxKnownOperators int    `yaml:"max_known_operators"`
}

// RedisConfig holds the connection settings for the redis state backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// StateConfig selects where the attribution state document lives.
type StateConfig struct {
	Backend string      `yaml:"backend"` // "file" or "redis"
	Redis   RedisConfig `yaml:"redis"`
}

// ProbeConfig holds the settings for the datagram listener and the NATS bus.
type ProbeConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	NATSURL           string `yaml:"nats_url"`
	Subject           string `yaml:"subject"`
	MaxDatagram       int    `yaml:"max_datagram"`
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
	DevicePort        int    `yaml:"device_port"`
}

// PollerConfig controls the background tail poller.
type PollerConfig struct {
	Interval  string `yaml:"interval"`
	BatchSize int    `yaml:"batch_size"`
	Watch     bool   `yaml:"watch"`
}

// APIConfig holds the listen addresses of the polling API.
type APIConfig struct {
	HTTPListenAddr string `yaml:"http_listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
	TailMax        int    `yaml:"tail_max"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	RootPath   string           `yaml:"root_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// ReportConfig controls report regeneration.
type ReportConfig struct {
	Cooldown string      `yaml:"cooldown"`
	Timeout  string      `yaml:"timeout"`
	Writers  []WriterDef `yaml:"writers"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// AlerterConfig holds the configuration for the stale-session alerter.
type AlerterConfig struct {
	Enabled       bool       `yaml:"enabled"`
	CheckInterval string     `yaml:"check_interval"`
	StaleAfter    string     `yaml:"stale_after"`
	Notifier      string     `yaml:"notifier"` // "log", "nats" or "email"
	SMTP          SMTPConfig `yaml:"smtp"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	State   StateConfig   `yaml:"state"`
	Probe   ProbeConfig   `yaml:"probe"`
	Poller  PollerConfig  `yaml:"poller"`
	API     APIConfig     `yaml:"api"`
	Report  ReportConfig  `yaml:"report"`
	Alerter AlerterConfig `yaml:"alerter"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with the values the device firmware and
// report pages expect.
func (c *Config) ApplyDefaults() {
	s := &c.Store
	if s.Dir == "" {
		s.Dir = "logs"
	}
	if s.EventLog == "" {
		s.EventLog = "udp_log.jsonl"
	}
	if s.StateFile == "" {
		s.StateFile = "attribution_state.json"
	}
	if s.SessionMap == "" {
		s.SessionMap = "session_operator_map.jsonl"
	}
	if s.KnownOperators == "" {
		s.KnownOperators = "known_operators.json"
	}
	if s.MaxKnownOperators <= 0 {
		s.MaxKnownOperators = 50
	}

	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Redis.Key == "" {
		c.State.Redis.Key = "cubo:attribution_state"
	}

	p := &c.Probe
	if p.ListenAddr == "" {
		p.ListenAddr = ":5000"
	}
	if p.NATSURL == "" {
		p.NATSURL = "nats://127.0.0.1:4222"
	}
	if p.Subject == "" {
		p.Subject = "cubo.datagrams"
	}
	if p.MaxDatagram <= 0 {
		p.MaxDatagram = 2048
	}
	if p.ChannelBufferSize <= 0 {
		p.ChannelBufferSize = 1024
	}
	if p.DevicePort <= 0 {
		p.DevicePort = 5000
	}

	if c.Poller.Interval == "" {
		c.Poller.Interval = "1s"
	}
	if c.Poller.BatchSize <= 0 {
		c.Poller.BatchSize = 2000
	}

	if c.API.HTTPListenAddr == "" {
		c.API.HTTPListenAddr = ":8000"
	}
	if c.API.GRPCListenAddr == "" {
		c.API.GRPCListenAddr = ":8001"
	}
	if c.API.TailMax <= 0 {
		c.API.TailMax = 2000
	}

	if c.Report.Cooldown == "" {
		c.Report.Cooldown = "1s"
	}
	if c.Report.Timeout == "" {
		c.Report.Timeout = "25s"
	}
	if len(c.Report.Writers) == 0 {
		c.Report.Writers = []WriterDef{{Type: "html", Enabled: true, RootPath: "reports"}}
	}

	if c.Alerter.CheckInterval == "" {
		c.Alerter.CheckInterval = "1m"
	}
	if c.Alerter.StaleAfter == "" {
		c.Alerter.StaleAfter = "30m"
	}
	if c.Alerter.Notifier == "" {
		c.Alerter.Notifier = "log"
	}
}

// Path joins name onto the store directory unless it is already absolute.
func (s StoreConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// ParseDuration parses a duration field and names it in the error.
func ParseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", field)
	}
	return d, nil
}
