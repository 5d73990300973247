package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/danmuck/artcast/internal/logging"
)

// AMQP publishes packets to a topic exchange. On RabbitMQ the default
// amq.topic exchange is shared with the MQTT plugin, so routing keys use
// '.' where MQTT topics use '/'.
type AMQP struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	cfg    Config
	logger zerolog.Logger

	mu sync.Mutex
}

func DialAMQP(ctx context.Context, cfg Config) (*AMQP, error) {
	logger := logging.New("transport.amqp")
	if strings.TrimSpace(cfg.Exchange) == "" {
		cfg.Exchange = DefaultConfig().Exchange
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := amqpURL(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(target, amqp.Config{
		Dial:       amqp.DefaultDial(cfg.ConnectTimeout),
		Properties: amqp.Table{"connection_name": cfg.ClientID},
	})
	if err != nil {
		return nil, fmt.Errorf("transport: amqp connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: amqp channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: amqp confirm mode: %w", err)
	}
	logger.Info().Str("exchange", cfg.Exchange).Msg("connected")
	return &AMQP{conn: conn, ch: ch, cfg: cfg, logger: logger}, nil
}

func (a *AMQP) Publish(ctx context.Context, topic string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn.IsClosed() {
		return ErrClosed
	}
	conf, err := a.ch.PublishWithDeferredConfirmWithContext(ctx, a.cfg.Exchange, RoutingKey(topic), false, false, amqp.Publishing{
		ContentType:  "application/octet-stream",
		DeliveryMode: amqp.Transient,
		Body:         payload,
	})
	if err != nil {
		return err
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transport: amqp broker nacked delivery %d", conf.DeliveryTag)
	}
	return nil
}

func (a *AMQP) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn.IsClosed() {
		return nil
	}
	linger(ctx, a.cfg.Linger)
	if err := a.ch.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("channel close")
	}
	return a.conn.Close()
}

// RoutingKey converts an MQTT style topic into an AMQP topic routing key.
func RoutingKey(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

func amqpURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("transport: parse amqp url: %w", err)
	}
	if cfg.User != "" && u.User == nil {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String(), nil
}
