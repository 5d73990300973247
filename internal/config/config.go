package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/danmuck/artcast/internal/artwork"
	"github.com/danmuck/artcast/internal/protocol/framer"
	"github.com/danmuck/artcast/internal/transfer"
	"github.com/danmuck/artcast/internal/transport"
)

const (
	EnvBrokerURL      = "ARTCAST_BROKER_URL"
	EnvBrokerUser     = "ARTCAST_BROKER_USER"
	EnvBrokerPassword = "ARTCAST_BROKER_PASSWORD"
	EnvTopic          = "ARTCAST_TOPIC"

	DefaultEnvFile = ".env"
)

// Config is the resolved artcastctl runtime configuration.
type Config struct {
	Broker      transport.Config
	Topic       string
	Limits      framer.Limits
	MaxAttempts int
	Backoff     transport.BackoffConfig
	Artwork     artwork.Options
	Metrics     MetricsConfig
}

type MetricsConfig struct {
	Pushgateway string
	Job         string
}

func Default() Config {
	return Config{
		Broker:      transport.DefaultConfig(),
		Topic:       transfer.DefaultTopic,
		Limits:      framer.DefaultLimits(),
		MaxAttempts: 3,
		Backoff:     transport.DefaultBackoff(),
		Artwork:     artwork.DefaultOptions(),
		Metrics:     MetricsConfig{Job: "artcastctl"},
	}
}

// config.toml key mapping. Durations are strings parsed with time.ParseDuration.
type fileConfig struct {
	Broker   fileBroker   `toml:"broker"`
	Transfer fileTransfer `toml:"transfer"`
	Artwork  fileArtwork  `toml:"artwork"`
	Metrics  fileMetrics  `toml:"metrics"`
}

type fileBroker struct {
	URL            string `toml:"url"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	ClientID       string `toml:"client_id"`
	ConnectTimeout string `toml:"connect_timeout"`
	QoS            int    `toml:"qos"`
	Linger         string `toml:"linger"`
	Exchange       string `toml:"exchange"`
}

type fileTransfer struct {
	Topic         string      `toml:"topic"`
	MaxPacketSize int         `toml:"max_packet_size"`
	HeaderReserve int         `toml:"header_reserve"`
	MaxAttempts   int         `toml:"max_attempts"`
	Backoff       fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

type fileArtwork struct {
	Size    int  `toml:"size"`
	Quality int  `toml:"quality"`
	Raw     bool `toml:"raw"`
}

type fileMetrics struct {
	Pushgateway string `toml:"pushgateway"`
	Job         string `toml:"job"`
}

// Load resolves the configuration and validates it.
func Load(path, envFile string) (Config, error) {
	cfg, err := Resolve(path, envFile)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve overlays the TOML file at path (optional) and the environment on
// top of Default without validating the result, so callers can apply their
// own overrides first. envFile is loaded first without overriding variables
// that are already set; a missing envFile is ignored.
func Resolve(path, envFile string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config env load failed (%s): %w", envFile, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if meta.IsDefined("broker", "url") {
		cfg.Broker.URL = strings.TrimSpace(raw.Broker.URL)
	}
	if meta.IsDefined("broker", "user") {
		cfg.Broker.User = strings.TrimSpace(raw.Broker.User)
	}
	if meta.IsDefined("broker", "password") {
		cfg.Broker.Password = raw.Broker.Password
	}
	if meta.IsDefined("broker", "client_id") {
		cfg.Broker.ClientID = strings.TrimSpace(raw.Broker.ClientID)
	}
	if meta.IsDefined("broker", "connect_timeout") {
		d, err := parseDuration("broker.connect_timeout", raw.Broker.ConnectTimeout)
		if err != nil {
			return err
		}
		cfg.Broker.ConnectTimeout = d
	}
	if meta.IsDefined("broker", "qos") {
		if raw.Broker.QoS < 0 || raw.Broker.QoS > 2 {
			return fmt.Errorf("broker.qos must be 0, 1 or 2: %d", raw.Broker.QoS)
		}
		cfg.Broker.QoS = byte(raw.Broker.QoS)
	}
	if meta.IsDefined("broker", "linger") {
		d, err := parseDuration("broker.linger", raw.Broker.Linger)
		if err != nil {
			return err
		}
		cfg.Broker.Linger = d
	}
	if meta.IsDefined("broker", "exchange") {
		cfg.Broker.Exchange = strings.TrimSpace(raw.Broker.Exchange)
	}

	if meta.IsDefined("transfer", "topic") {
		cfg.Topic = strings.TrimSpace(raw.Transfer.Topic)
	}
	if meta.IsDefined("transfer", "max_packet_size") {
		cfg.Limits.MaxPacketSize = raw.Transfer.MaxPacketSize
	}
	if meta.IsDefined("transfer", "header_reserve") {
		cfg.Limits.HeaderReserve = raw.Transfer.HeaderReserve
	}
	if meta.IsDefined("transfer", "max_attempts") {
		cfg.MaxAttempts = raw.Transfer.MaxAttempts
	}
	if meta.IsDefined("transfer", "backoff", "initial_delay") {
		d, err := parseDuration("transfer.backoff.initial_delay", raw.Transfer.Backoff.InitialDelay)
		if err != nil {
			return err
		}
		cfg.Backoff.InitialDelay = d
	}
	if meta.IsDefined("transfer", "backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Transfer.Backoff.Multiplier
	}
	if meta.IsDefined("transfer", "backoff", "max_delay") {
		d, err := parseDuration("transfer.backoff.max_delay", raw.Transfer.Backoff.MaxDelay)
		if err != nil {
			return err
		}
		cfg.Backoff.MaxDelay = d
	}
	if meta.IsDefined("transfer", "backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Transfer.Backoff.Jitter
	}

	if meta.IsDefined("artwork", "size") {
		cfg.Artwork.Size = raw.Artwork.Size
	}
	if meta.IsDefined("artwork", "quality") {
		cfg.Artwork.Quality = raw.Artwork.Quality
	}
	if meta.IsDefined("artwork", "raw") {
		cfg.Artwork.Raw = raw.Artwork.Raw
	}

	if meta.IsDefined("metrics", "pushgateway") {
		cfg.Metrics.Pushgateway = strings.TrimSpace(raw.Metrics.Pushgateway)
	}
	if meta.IsDefined("metrics", "job") {
		cfg.Metrics.Job = strings.TrimSpace(raw.Metrics.Job)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBrokerURL)); v != "" {
		cfg.Broker.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrokerUser)); v != "" {
		cfg.Broker.User = v
	}
	if v := os.Getenv(EnvBrokerPassword); v != "" {
		cfg.Broker.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTopic)); v != "" {
		cfg.Topic = v
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func Validate(cfg Config) error {
	if _, err := transport.KindOf(cfg.Broker.URL); err != nil {
		return fmt.Errorf("broker config invalid: %w", err)
	}
	if cfg.Broker.User == "" && cfg.Broker.Password != "" {
		return fmt.Errorf("broker config has a password but no user")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return fmt.Errorf("transfer config missing topic")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return fmt.Errorf("transfer config invalid: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("transfer config max_attempts must be >= 1: %d", cfg.MaxAttempts)
	}
	if err := cfg.Artwork.Validate(); err != nil {
		return err
	}
	return nil
}
