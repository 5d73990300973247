package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnsupportedScheme = errors.New("transport: unsupported broker scheme")
	ErrMissingURL        = errors.New("transport: missing broker url")
	ErrClosed            = errors.New("transport: publisher closed")
)

// Publisher sends one fully serialized packet to a topic. Implementations
// must deliver packets for a topic in the order Publish was called.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close(ctx context.Context) error
}

// Config describes one broker session.
type Config struct {
	URL            string
	User           string
	Password       string
	ClientID       string
	ConnectTimeout time.Duration
	// QoS applies to MQTT only.
	QoS byte
	// Linger is how long Close waits before disconnecting so in-flight
	// messages can drain.
	Linger time.Duration
	// Exchange applies to AMQP only.
	Exchange string
}

func DefaultConfig() Config {
	return Config{
		URL:            "tcp://localhost:1883",
		ClientID:       "artcastctl",
		ConnectTimeout: 10 * time.Second,
		QoS:            1,
		Linger:         5 * time.Second,
		Exchange:       "amq.topic",
	}
}

// Kind is the broker protocol selected by URL scheme.
type Kind string

const (
	KindMQTT Kind = "mqtt"
	KindNATS Kind = "nats"
	KindAMQP Kind = "amqp"
)

func KindOf(rawURL string) (Kind, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("transport: parse broker url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp", "mqtt", "ssl", "mqtts", "ws", "wss":
		return KindMQTT, nil
	case "nats", "tls":
		return KindNATS, nil
	case "amqp", "amqps":
		return KindAMQP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Dial connects to the broker named by cfg.URL.
func Dial(ctx context.Context, cfg Config) (Publisher, error) {
	kind, err := KindOf(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	switch kind {
	case KindMQTT:
		return DialMQTT(ctx, cfg)
	case KindNATS:
		return DialNATS(ctx, cfg)
	default:
		return DialAMQP(ctx, cfg)
	}
}

// linger waits d or until ctx is done, whichever is first.
func linger(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
