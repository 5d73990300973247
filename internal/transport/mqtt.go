package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/danmuck/artcast/internal/logging"
)

// MQTT publishes packets through a paho client.
type MQTT struct {
	client mqtt.Client
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func DialMQTT(ctx context.Context, cfg Config) (*MQTT, error) {
	logger := logging.New("transport.mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(mqttBroker(cfg.URL)).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info().Str("broker", cfg.URL).Msg("connected")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn().Err(err).Str("broker", cfg.URL).Msg("connection lost")
		})
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("transport: mqtt connect %s: %w", cfg.URL, err)
	}
	return &MQTT{client: client, cfg: cfg, logger: logger}, nil
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return waitToken(ctx, m.client.Publish(topic, m.cfg.QoS, false, payload))
}

func (m *MQTT) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	linger(ctx, m.cfg.Linger)
	m.client.Disconnect(250)
	m.logger.Info().Str("broker", m.cfg.URL).Msg("disconnected")
	return nil
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mqttBroker rewrites mqtt:// and mqtts:// into the schemes paho dials.
func mqttBroker(raw string) string {
	switch {
	case strings.HasPrefix(raw, "mqtt://"):
		return "tcp://" + strings.TrimPrefix(raw, "mqtt://")
	case strings.HasPrefix(raw, "mqtts://"):
		return "ssl://" + strings.TrimPrefix(raw, "mqtts://")
	default:
		return raw
	}
}
