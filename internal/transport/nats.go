package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/danmuck/artcast/internal/logging"
)

// NATS publishes packets as core NATS messages. MQTT style topics are used
// as subjects unchanged; NATS treats '/' as an ordinary subject character.
type NATS struct {
	nc     *nats.Conn
	cfg    Config
	logger zerolog.Logger
}

func DialNATS(ctx context.Context, cfg Config) (*NATS, error) {
	logger := logging.New("transport.nats")
	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Str("broker", cfg.URL).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("broker", nc.ConnectedUrl()).Msg("reconnected")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: nats connect %s: %w", cfg.URL, err)
	}
	logger.Info().Str("broker", nc.ConnectedUrl()).Msg("connected")
	return &NATS{nc: nc, cfg: cfg, logger: logger}, nil
}

func (n *NATS) Publish(ctx context.Context, topic string, payload []byte) error {
	if n.nc.IsClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.nc.Publish(topic, payload)
}

func (n *NATS) Close(ctx context.Context) error {
	if n.nc.IsClosed() {
		return nil
	}
	linger(ctx, n.cfg.Linger)
	err := n.nc.FlushWithContext(ctx)
	n.nc.Close()
	n.logger.Info().Str("broker", n.cfg.URL).Msg("closed")
	return err
}
